package ledger

import (
	"errors"

	"github.com/talgya/bunkhouse/internal/catalog"
)

// Error kinds returned by ledger and host operations. All are recoverable; callers
// match them with errors.Is.
var (
	ErrInvalidDefinition      = catalog.ErrInvalidDefinition
	ErrAlreadyInstalled       = errors.New("upgrade already installed")
	ErrMissingPrerequisite    = errors.New("missing prerequisite upgrade")
	ErrInsufficientSpace      = errors.New("insufficient space")
	ErrDependentUpgradesExist = errors.New("other upgrades depend on this one")
	ErrNotInstalled           = errors.New("upgrade not installed")
)
