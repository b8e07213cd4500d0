package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/bunkhouse/internal/report"
)

func printActiveReport(w io.Writer, r report.ActiveReport) {
	if len(r.Hosts) == 0 {
		fmt.Fprintln(w, "No host has any upgrades.")
		return
	}

	for _, h := range r.Hosts {
		fmt.Fprintf(w, "%s (%s, %s)\n", h.Name, h.ID, h.Kind)
		fmt.Fprintf(w, "  beds: %d   space: %s / %s\n", h.BedCount,
			humanize.FtoaWithDigits(h.UsedSpace, 1), humanize.FtoaWithDigits(h.TotalSpace, 1))
		for _, u := range h.Upgrades {
			line := fmt.Sprintf("  - %s ×%d [%s]", u.Def, u.Count, u.Reason)
			if u.Material != "" {
				line += " " + u.Material
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d hosts with upgrades, %s upgrades in total\n",
		r.HostsWithUpgrades, humanize.Comma(int64(r.TotalUpgrades)))
}

func printSummary(w io.Writer, lines []report.SummaryLine) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No upgrades constructed.")
		return
	}

	fmt.Fprintf(w, "%-24s %6s %9s  %s\n", "UPGRADE", "HOSTS", "INSTANCES", "MATERIALS")
	for _, l := range lines {
		var mats []string
		for _, m := range l.Materials {
			mats = append(mats, fmt.Sprintf("%s:%d", m.Material, m.Count))
		}
		fmt.Fprintf(w, "%-24s %6d %9d  %s\n", l.Def, l.Hosts, l.Instances, strings.Join(mats, " "))
	}
}
