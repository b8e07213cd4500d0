package caretaker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ToggleResult is the part of the host view returned by a toggle that the
// caretaker checks.
type ToggleResult struct {
	ID    string `json:"id"`
	State struct {
		Upgrades []UpgradeInfo `json:"upgrades"`
	} `json:"state"`
}

// IsOn reports whether def is switched on in the returned host state.
func (r *ToggleResult) IsOn(def string) bool {
	for _, u := range r.State.Upgrades {
		if u.Def == def {
			return !u.ToggledOff
		}
	}
	return false
}

// Actor executes toggles via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act sends a toggle to POST /api/v1/hosts/{id}/upgrades/{def}/toggle.
func (a *Actor) Act(action Action) (*ToggleResult, error) {
	path := fmt.Sprintf("/api/v1/hosts/%s/upgrades/%s/toggle", url.PathEscape(action.HostID), url.PathEscape(action.Def))
	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST toggle: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("toggle failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result ToggleResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
