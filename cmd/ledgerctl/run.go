package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/persistence"
	"github.com/talgya/bunkhouse/internal/report"
)

// loadCatalog reads the catalog file, or returns the built-in one for "".
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

// openHosts opens an existing database and loads its hosts.
func openHosts(dbPath, catalogPath string) (*persistence.DB, []*host.Host, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	hosts, err := db.LoadHosts(cat)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("loading hosts: %w", err)
	}
	return db, hosts, nil
}

func runReport(dbPath, catalogPath string) error {
	db, hosts, err := openHosts(dbPath, catalogPath)
	if err != nil {
		return err
	}
	defer db.Close()
	printActiveReport(os.Stdout, report.Active(hosts))
	return nil
}

func runSummary(dbPath, catalogPath string) error {
	db, hosts, err := openHosts(dbPath, catalogPath)
	if err != nil {
		return err
	}
	defer db.Close()
	printSummary(os.Stdout, report.Summary(hosts))
	return nil
}

func runInspect(dbPath, hostID, catalogPath string) error {
	db, hosts, err := openHosts(dbPath, catalogPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, h := range hosts {
		if h.ID == hostID {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Inspect(h))
		}
	}
	return fmt.Errorf("no host with id %q", hostID)
}

// runMigrate loads every host, converting legacy blobs, and saves them back
// in the canonical format.
func runMigrate(dbPath, catalogPath string) error {
	db, hosts, err := openHosts(dbPath, catalogPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveHosts(hosts); err != nil {
		return fmt.Errorf("saving hosts: %w", err)
	}
	fmt.Printf("Rewrote %d hosts.\n", len(hosts))
	return nil
}

func runCatalogValidate(path string) error {
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("Result: VALID (%d definitions)\n", cat.Len())
	return nil
}

// runCatalogExport writes the catalog in the shape LoadFile reads back.
func runCatalogExport(catalogPath, format string, w io.Writer) error {
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}
	data, err := cat.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	switch format {
	case "json":
		var defs []json.RawMessage
		if err := json.Unmarshal(data, &defs); err != nil {
			return fmt.Errorf("encoding catalog: %w", err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	case "yaml":
		var defs []map[string]any
		if err := json.Unmarshal(data, &defs); err != nil {
			return fmt.Errorf("encoding catalog: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(defs); err != nil {
			return fmt.Errorf("encoding catalog YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
