// Package exchange converts the live store to and from portable files:
// the JSON export/import payload, a flat CSV report and a YAML rendering.
package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/sitetime/internal/usage"
)

// Version is written into every export payload.
const Version = "1.0"

// Payload is the export envelope.
type Payload struct {
	Version    string         `json:"version"`
	ExportDate time.Time      `json:"exportDate"`
	Data       usage.Snapshot `json:"data"`
	TotalSites int            `json:"totalSites"`
	TotalTime  int64          `json:"totalTime"`
}

// Build wraps snap in an export envelope stamped with now.
func Build(snap usage.Snapshot, now time.Time) Payload {
	if snap == nil {
		snap = usage.Snapshot{}
	}
	return Payload{
		Version:    Version,
		ExportDate: now.UTC(),
		Data:       snap,
		TotalSites: len(snap),
		TotalTime:  snap.TotalTime(),
	}
}

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, csv, yaml or yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// Filename returns the conventional export file name for a given day.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("sitetime-%s.%s", now.UTC().Format(time.DateOnly), f)
}
