package caretaker

import (
	"math"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/talgya/bunkhouse/internal/api"
	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/engine"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/weather"
)

var testDefs = []Definition{
	{ID: "stove", FuelPerBed: 2, HeatOffset: 10, MaxHeatCap: 20},
	{ID: "cooler", FuelPerBed: 1, CoolOffset: 6, MinCoolCap: 15},
	{ID: "walls"},
}

func hostInfo(id string, outdoor, current, fuel float64, ups ...UpgradeInfo) HostInfo {
	var h HostInfo
	h.ID = id
	h.Name = "host " + id
	h.Context.Spawned = true
	h.Context.OutdoorTemp = outdoor
	h.Context.FuelReserve = fuel
	h.Context.TargetTemp = 21
	h.State.Climate.Current = current
	h.State.Upgrades = ups
	return h
}

func on(def string) UpgradeInfo  { return UpgradeInfo{Def: def, Count: 1, Reason: "active"} }
func off(def string) UpgradeInfo { return UpgradeInfo{Def: def, Count: 1, ToggledOff: true, Reason: "toggled_off"} }

func TestDecide(t *testing.T) {
	cases := []struct {
		name string
		host HostInfo
		want []Action
	}{
		{"stove in a heatwave", hostInfo("a", 25, 30, 10, on("stove")),
			[]Action{{Def: "stove", On: false}}},
		{"stove in the cold", hostInfo("a", 5, 15, 10, on("stove")), nil},
		{"cooler in frost", hostInfo("a", 5, 10, 10, on("cooler")),
			[]Action{{Def: "cooler", On: false}}},
		{"heater back on when cold", hostInfo("a", 10, 14, 10, off("stove")),
			[]Action{{Def: "stove", On: true}}},
		{"heater stays off inside band", hostInfo("a", 10, 19, 10, off("stove")), nil},
		{"heater stays off against weather", hostInfo("a", 22, 14, 10, off("stove")), nil},
		{"heater stays off without fuel", hostInfo("a", 10, 14, 0, off("stove")), nil},
		{"cooler back on when hot", hostInfo("a", 30, 26, 10, off("cooler")),
			[]Action{{Def: "cooler", On: true}}},
		{"cooler not used to heat", hostInfo("a", 30, 14, 10, off("cooler")), nil},
		{"fuel-free upgrades ignored", hostInfo("a", 30, 30, 10, on("walls")), nil},
		{"unknown upgrades ignored", hostInfo("a", 30, 30, 10, on("ghost")), nil},
	}
	for _, tc := range cases {
		snap := &Snapshot{Catalog: testDefs, Hosts: []HostInfo{tc.host}}
		got := Decide(snap, nil, DefaultRules())
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %d actions %+v, want %d", tc.name, len(got), got, len(tc.want))
		}
		for i, w := range tc.want {
			if got[i].Def != w.Def || got[i].On != w.On || got[i].HostID != "a" || got[i].Rationale == "" {
				t.Fatalf("%s: action %d = %+v, want def=%s on=%v", tc.name, i, got[i], w.Def, w.On)
			}
		}
	}
}

func TestDecideSkipsUnspawned(t *testing.T) {
	h := hostInfo("a", 25, 30, 10, on("stove"))
	h.Context.Spawned = false
	if got := Decide(&Snapshot{Catalog: testDefs, Hosts: []HostInfo{h}}, nil, DefaultRules()); len(got) != 0 {
		t.Fatalf("unspawned host produced %+v", got)
	}
}

func TestMemoryCooldown(t *testing.T) {
	mem := LoadMemory("")
	mem.Record(ActionRecord{Tick: 100, HostID: "a", Def: "stove"})

	snap := &Snapshot{Catalog: testDefs, Hosts: []HostInfo{hostInfo("a", 25, 30, 10, on("stove"))}}
	rules := DefaultRules()

	snap.Status.Tick = 130
	if got := Decide(snap, mem, rules); len(got) != 0 {
		t.Fatalf("switched inside cooldown: %+v", got)
	}
	snap.Status.Tick = 160
	if got := Decide(snap, mem, rules); len(got) != 1 {
		t.Fatalf("cooldown should have expired, got %+v", got)
	}
	if mem.RecentlyToggled("a", "cooler", 130, rules.Cooldown) {
		t.Fatalf("cooldown leaked across upgrades")
	}
}

func TestMemoryPersistsAndTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := LoadMemory(path)
	for i := 0; i < maxRecords+5; i++ {
		mem.Record(ActionRecord{Tick: uint64(i), HostID: "a", Def: "stove"})
	}
	mem.Save()

	loaded := LoadMemory(path)
	if len(loaded.Records) != maxRecords || loaded.Records[0].Tick != 5 {
		t.Fatalf("loaded %d records starting at %d", len(loaded.Records), loaded.Records[0].Tick)
	}
}

func TestTriage(t *testing.T) {
	burning := func(h HostInfo, perDay float64) HostInfo {
		h.State.Usage.FuelPerDay = perDay
		return h
	}
	unspawned := hostInfo("u", 0, 0, 0)
	unspawned.Context.Spawned = false

	snap := &Snapshot{Hosts: []HostInfo{
		burning(hostInfo("crit", 5, 21, 1, on("stove")), 4),
		hostInfo("warn", 5, 12, 10),
		burning(hostInfo("watch", 5, 21, 5, on("stove")), 2),
		hostInfo("ok", 5, 22, 10),
		unspawned,
	}}
	got := Triage(snap, 3)
	want := []string{LevelCritical, LevelWarning, LevelWatch, LevelHealthy}
	if len(got) != len(want) {
		t.Fatalf("got %d entries", len(got))
	}
	for i, w := range want {
		if got[i].Level != w {
			t.Fatalf("%s: level %s, want %s", got[i].HostID, got[i].Level, w)
		}
	}
	if !math.IsInf(got[3].FuelDays, 1) || got[0].FuelDays != 0.25 {
		t.Fatalf("fuel days %v %v", got[0].FuelDays, got[3].FuelDays)
	}
	if Worst(got) != LevelCritical || Worst(nil) != LevelHealthy {
		t.Fatalf("worst level wrong")
	}
}

func TestCycleAgainstAPI(t *testing.T) {
	cat, err := catalog.New([]catalog.Definition{
		{ID: "stove", SpaceCost: 1, FuelPerBed: 2, HeatOffset: 10, MaxHeatCap: 20},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	sim := engine.NewSimulation(cat, weather.Fixed(25), nil)
	view := sim.CreateHost("loft", host.KindSecondFloor, host.Context{
		Spawned: true, FuelReserve: 100, TotalSpace: 10, BaseBedCount: 1, TargetTemp: 21,
	})
	if _, err := sim.Install(view.ID, "stove", ""); err != nil {
		t.Fatalf("install: %v", err)
	}
	sim.TickMinute(1)

	srv := &api.Server{Sim: sim, AdminKey: "k"}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	snap, err := NewObserver(ts.URL).Observe()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(snap.Hosts) != 1 || snap.Hosts[0].Context.OutdoorTemp != 25 || len(snap.Catalog) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	actions := Decide(snap, nil, DefaultRules())
	if len(actions) != 1 || actions[0].On {
		t.Fatalf("actions = %+v", actions)
	}
	res, err := NewActor(ts.URL, "k").Act(actions[0])
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if res.IsOn("stove") {
		t.Fatalf("stove still on after toggle")
	}

	if _, err := NewActor(ts.URL, "wrong").Act(actions[0]); err == nil {
		t.Fatalf("bad key accepted")
	}
}
