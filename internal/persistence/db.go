// Package persistence provides SQLite-based storage for hosts, their upgrade
// ledgers and the simulation's event log.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/engine"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/ledger"
)

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		spawned INTEGER NOT NULL,
		outdoor_temp REAL NOT NULL,
		has_power INTEGER NOT NULL,
		fuel_reserve REAL NOT NULL,
		total_space REAL NOT NULL,
		base_bed_count INTEGER NOT NULL,
		target_temp REAL NOT NULL,
		upgrades_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		host_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_host ON events(host_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type hostRow struct {
	ID           string  `db:"id"`
	Position     int     `db:"position"`
	Name         string  `db:"name"`
	Kind         string  `db:"kind"`
	Spawned      bool    `db:"spawned"`
	OutdoorTemp  float64 `db:"outdoor_temp"`
	HasPower     bool    `db:"has_power"`
	FuelReserve  float64 `db:"fuel_reserve"`
	TotalSpace   float64 `db:"total_space"`
	BaseBedCount int     `db:"base_bed_count"`
	TargetTemp   float64 `db:"target_temp"`
	UpgradesJSON string  `db:"upgrades_json"`
}

// SaveHosts writes all hosts to the database (full replace). Ledgers are always
// written in the canonical record format.
func (db *DB) SaveHosts(hosts []*host.Host) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM hosts"); err != nil {
		return err
	}

	for i, h := range hosts {
		upgrades, err := ledger.Encode(h.Ledger())
		if err != nil {
			return fmt.Errorf("encode upgrades of host %s: %w", h.ID, err)
		}
		row := hostRow{
			ID:           h.ID,
			Position:     i,
			Name:         h.Name,
			Kind:         h.Kind,
			Spawned:      h.Context.Spawned,
			OutdoorTemp:  h.Context.OutdoorTemp,
			HasPower:     h.Context.HasPower,
			FuelReserve:  h.Context.FuelReserve,
			TotalSpace:   h.Context.TotalSpace,
			BaseBedCount: h.Context.BaseBedCount,
			TargetTemp:   h.Context.TargetTemp,
			UpgradesJSON: string(upgrades),
		}
		_, err = tx.NamedExec(`INSERT INTO hosts
			(id, position, name, kind, spawned, outdoor_temp, has_power, fuel_reserve,
			 total_space, base_bed_count, target_temp, upgrades_json)
			VALUES (:id, :position, :name, :kind, :spawned, :outdoor_temp, :has_power, :fuel_reserve,
			 :total_space, :base_bed_count, :target_temp, :upgrades_json)`, row)
		if err != nil {
			return fmt.Errorf("insert host %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// LoadHosts reads every host in saved order. Upgrade lists stored in an older
// format are converted on load and rewritten canonical by the next save.
func (db *DB) LoadHosts(cat *catalog.Catalog) ([]*host.Host, error) {
	var rows []hostRow
	if err := db.conn.Select(&rows, "SELECT * FROM hosts ORDER BY position"); err != nil {
		return nil, fmt.Errorf("select hosts: %w", err)
	}

	hosts := make([]*host.Host, 0, len(rows))
	for _, r := range rows {
		l, format, err := ledger.Decode([]byte(r.UpgradesJSON), cat)
		if err != nil {
			return nil, fmt.Errorf("decode upgrades of host %s: %w", r.ID, err)
		}
		if format != ledger.FormatCanonical {
			slog.Info("migrated legacy upgrade list", "host", r.ID, "format", format, "records", l.Len())
		}
		ctx := host.Context{
			Spawned:      r.Spawned,
			OutdoorTemp:  r.OutdoorTemp,
			HasPower:     r.HasPower,
			FuelReserve:  r.FuelReserve,
			TotalSpace:   r.TotalSpace,
			BaseBedCount: r.BaseBedCount,
			TargetTemp:   r.TargetTemp,
		}
		hosts = append(hosts, host.Restore(r.ID, r.Name, r.Kind, cat, ctx, l))
	}
	return hosts, nil
}

// HasState reports whether any hosts have been saved.
func (db *DB) HasState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM hosts"); err != nil {
		return false
	}
	return n > 0
}

// SaveEvents replaces the stored event log with events.
func (db *DB) SaveEvents(events []engine.Event) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}
	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category, host_id) VALUES (?, ?, ?, ?)",
			e.Tick, e.Description, e.Category, e.HostID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadEvents returns the most recent limit events, oldest first.
func (db *DB) LoadEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		`SELECT tick, description, category, host_id FROM
			(SELECT id, tick, description, category, host_id FROM events ORDER BY id DESC LIMIT ?)
		 ORDER BY id`,
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in simulation metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveState performs a full save of the simulation. The caller must hold the
// simulation lock (see engine.Simulation.Locked).
func (db *DB) SaveState(sim *engine.Simulation) error {
	hosts := sim.Hosts.All()
	slog.Info("saving simulation state", "hosts", len(hosts), "events", len(sim.Events))

	if err := db.SaveHosts(hosts); err != nil {
		return fmt.Errorf("save hosts: %w", err)
	}
	if err := db.SaveEvents(sim.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(sim.LastTick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("season", strconv.Itoa(int(sim.CurrentSeason))); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("simulation state saved")
	return nil
}

// LastTick returns the saved tick counter, or 0 if none was saved.
func (db *DB) LastTick() uint64 {
	s, err := db.GetMeta("last_tick")
	if err != nil {
		return 0
	}
	tick, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("invalid saved tick", "value", s)
		return 0
	}
	return tick
}
