// Command ledgerctl inspects and maintains a saved bunkhouse state offline.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var catalogPath string

	rootCmd := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Inspect and maintain saved bunkhouse upgrade ledgers",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("BUNKHOUSE_CATALOG"), "catalog file (JSON or YAML); built-in catalog when empty")

	rootCmd.AddCommand(reportCmd(&catalogPath))
	rootCmd.AddCommand(summaryCmd(&catalogPath))
	rootCmd.AddCommand(inspectCmd(&catalogPath))
	rootCmd.AddCommand(migrateCmd(&catalogPath))
	rootCmd.AddCommand(catalogCmd(&catalogPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func reportCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "report [db-path]",
		Short: "List every host with constructed upgrades",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReport(args[0], *catalogPath)
		},
	}
}

func summaryCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [db-path]",
		Short: "Count how many hosts carry each upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSummary(args[0], *catalogPath)
		},
	}
}

func inspectCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [db-path] [host-id]",
		Short: "Print every derived value of one host as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(args[0], args[1], *catalogPath)
		},
	}
}

func migrateCmd(catalogPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [db-path]",
		Short: "Rewrite legacy upgrade blobs in the current format",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runMigrate(args[0], *catalogPath)
		},
	}
}

func catalogCmd(catalogPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate or export upgrade catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a catalog file for malformed definitions and dangling prerequisites",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCatalogValidate(args[0])
		},
	})

	var format string
	export := &cobra.Command{
		Use:   "export",
		Short: "Print the active catalog",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCatalogExport(*catalogPath, format, os.Stdout)
		},
	}
	export.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	cmd.AddCommand(export)

	return cmd
}
