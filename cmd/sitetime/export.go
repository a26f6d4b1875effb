package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/sitetime/internal/exchange"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked time",
	Long: `Write the whole store as sitetime-<date>.<ext> in the output directory,
or to stdout with --output -.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json, csv or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Output directory, or - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := exchange.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var exporter exchange.Exporter = exchange.DirExporter{Dir: exportOutput}
	if exportOutput == "-" {
		exporter = exchange.WriterExporter{W: os.Stdout}
	}

	name, err := exchange.Export(cmd.Context(), a.tracker, exporter, format, time.Now())
	if err != nil {
		return err
	}

	if exportOutput != "-" {
		fmt.Fprintf(os.Stderr, "Exported %s\n", name)
	}
	return nil
}
