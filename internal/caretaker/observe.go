// Package caretaker implements the autonomous bunkhouse steward.
// It observes host state via the API, decides which fuel upgrades to switch
// with deterministic rules, and acts via the admin toggle endpoint.
package caretaker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status  Status       `json:"status"`
	Catalog []Definition `json:"catalog"`
	Hosts   []HostInfo   `json:"hosts"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Tick        uint64  `json:"tick"`
	SimTime     string  `json:"sim_time"`
	Season      string  `json:"season"`
	Speed       float64 `json:"speed"`
	OutdoorTemp float64 `json:"outdoor_temp"`
	Weather     string  `json:"weather"`
	Stats       struct {
		Hosts           int     `json:"hosts"`
		TotalFuelPerDay float64 `json:"total_fuel_per_day"`
		AvgTemperature  float64 `json:"avg_temperature"`
	} `json:"stats"`
}

// Definition mirrors the fields of GET /api/v1/catalog the rules read.
type Definition struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	FuelPerBed float64 `json:"fuel_per_bed"`
	HeatOffset float64 `json:"heat_offset"`
	MaxHeatCap float64 `json:"max_heat_cap"`
	CoolOffset float64 `json:"cool_offset"`
	MinCoolCap float64 `json:"min_cool_cap"`
}

// Heater reports whether the upgrade warms the host.
func (d Definition) Heater() bool { return d.HeatOffset > 0 }

// Cooler reports whether the upgrade cools the host.
func (d Definition) Cooler() bool { return d.CoolOffset > 0 }

// AgainstWeather reports whether the upgrade burns at its reduced rate at this
// outdoor temperature: a heater when it is already warmer outside than its cap,
// a cooler when it is already colder.
func (d Definition) AgainstWeather(outdoor float64) bool {
	switch {
	case d.Heater():
		return outdoor > d.MaxHeatCap
	case d.Cooler():
		return outdoor < d.MinCoolCap
	}
	return false
}

// HostInfo mirrors items from GET /api/v1/hosts.
type HostInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Context struct {
		Spawned     bool    `json:"spawned"`
		OutdoorTemp float64 `json:"outdoor_temp"`
		FuelReserve float64 `json:"fuel_reserve"`
		TargetTemp  float64 `json:"target_temp"`
	} `json:"context"`
	State struct {
		BedCount int `json:"bed_count"`
		Climate  struct {
			Current float64 `json:"current_temperature"`
		} `json:"climate"`
		Usage struct {
			FuelPerDay float64 `json:"fuel_per_day"`
		} `json:"usage"`
		Upgrades []UpgradeInfo `json:"upgrades"`
	} `json:"state"`
}

// UpgradeInfo is one constructed upgrade with its availability.
type UpgradeInfo struct {
	Def        string `json:"def"`
	Count      int    `json:"count"`
	ToggledOff bool   `json:"toggled_off"`
	Reason     string `json:"reason"`
}

// Observer fetches bunkhouse state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status, catalog and hosts and returns a Snapshot.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/catalog", &snap.Catalog); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if err := o.fetchJSON("/api/v1/hosts", &snap.Hosts); err != nil {
		return nil, fmt.Errorf("fetch hosts: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
