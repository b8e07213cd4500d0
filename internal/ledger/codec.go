package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/bunkhouse/internal/catalog"
)

// Format identifies which saved shape a ledger was read from.
type Format uint8

const (
	FormatCanonical Format = iota // [{"def","material","count","toggled_off"}]
	FormatPairs                   // [{"def","stuff"}], count and toggle implied
	FormatIDList                  // ["id", ...], everything implied
)

// String returns a short name for logs.
func (f Format) String() string {
	switch f {
	case FormatPairs:
		return "pairs"
	case FormatIDList:
		return "id_list"
	default:
		return "canonical"
	}
}

var errUnknownFormat = errors.New("unrecognised upgrade list format")

// Encode writes the ledger in the canonical shape.
func Encode(l *Ledger) ([]byte, error) {
	return json.Marshal(l.Records())
}

// Decode reads a saved upgrade list, trying the canonical shape first and falling
// back through the older shapes. Whatever the source, the result is a ledger in
// canonical form; records whose id the catalog does not know are dropped.
func Decode(data []byte, cat *catalog.Catalog) (*Ledger, Format, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return New(), FormatCanonical, nil
	}

	recs, format, err := decodeAny(data)
	if err != nil {
		return nil, format, fmt.Errorf("decode upgrades: %w", err)
	}

	l := New()
	for _, r := range recs {
		switch {
		case !cat.Has(r.DefID):
			slog.Warn("dropping saved upgrade with unknown definition", "def", r.DefID, "format", format.String())
		case r.Count < 1:
			slog.Warn("dropping saved upgrade with no instances", "def", r.DefID, "count", r.Count)
		case l.Has(r.DefID):
			slog.Warn("dropping duplicate saved upgrade", "def", r.DefID)
		default:
			l.append(r)
		}
	}
	return l, format, nil
}

func decodeAny(data []byte) ([]Record, Format, error) {
	if recs, ok := decodeCanonical(data); ok {
		return recs, FormatCanonical, nil
	}
	if recs, ok := decodePairs(data); ok {
		return recs, FormatPairs, nil
	}
	if recs, ok := decodeIDList(data); ok {
		return recs, FormatIDList, nil
	}
	return nil, FormatCanonical, errUnknownFormat
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeCanonical(data []byte) ([]Record, bool) {
	var raw []struct {
		DefID      *string `json:"def"`
		Material   string  `json:"material"`
		Count      *int    `json:"count"`
		ToggledOff bool    `json:"toggled_off"`
	}
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, false
	}
	recs := make([]Record, 0, len(raw))
	for _, r := range raw {
		if r.DefID == nil || r.Count == nil {
			return nil, false
		}
		recs = append(recs, Record{DefID: *r.DefID, Material: r.Material, Count: *r.Count, ToggledOff: r.ToggledOff})
	}
	return recs, true
}

func decodePairs(data []byte) ([]Record, bool) {
	var raw []struct {
		DefID string `json:"def"`
		Stuff string `json:"stuff"`
	}
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, false
	}
	recs := make([]Record, 0, len(raw))
	for _, r := range raw {
		if r.DefID == "" {
			return nil, false
		}
		recs = append(recs, Record{DefID: r.DefID, Material: r.Stuff, Count: 1})
	}
	return recs, true
}

func decodeIDList(data []byte) ([]Record, bool) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false
	}
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, Record{DefID: id, Count: 1})
	}
	return recs, true
}
