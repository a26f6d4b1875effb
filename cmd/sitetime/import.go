package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/sitetime/internal/exchange"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Merge an exported file into the store",
	Long: `Merge a JSON export into the live store. Shared domains have their
totals, buckets and sessions added together; nothing is overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var importer exchange.Importer = exchange.FileImporter{Path: args[0]}
	if args[0] == "-" {
		importer = exchange.ReaderImporter{R: os.Stdin}
	}

	result, err := exchange.Import(cmd.Context(), a.tracker, importer)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Printf("Imported %d site(s)\n", result.SitesImported)
	return nil
}
