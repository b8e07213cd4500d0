package caretaker

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// ActionRecord captures one toggle the caretaker sent.
type ActionRecord struct {
	Tick   uint64 `json:"tick"`
	HostID string `json:"host_id"`
	Def    string `json:"def"`
	On     bool   `json:"on"`
}

// Memory keeps a ring of recent actions so an upgrade is not flipped back
// and forth on consecutive cycles.
type Memory struct {
	Records []ActionRecord `json:"records"`
	path    string
}

// LoadMemory reads the memory file from disk. Returns empty memory if it is
// missing or unreadable. An empty path keeps memory in-process only.
func LoadMemory(path string) *Memory {
	mem := &Memory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("caretaker memory corrupted, starting fresh", "error", err)
		return &Memory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *Memory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal caretaker memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write caretaker memory", "error", err)
	}
}

// Record adds an action record, trimming to maxRecords.
func (m *Memory) Record(r ActionRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// RecentlyToggled reports whether the upgrade was switched within the last
// cooldown ticks before tick.
func (m *Memory) RecentlyToggled(hostID, def string, tick, cooldown uint64) bool {
	for i := len(m.Records) - 1; i >= 0; i-- {
		r := m.Records[i]
		if r.HostID != hostID || r.Def != def {
			continue
		}
		return r.Tick <= tick && tick-r.Tick < cooldown
	}
	return false
}
