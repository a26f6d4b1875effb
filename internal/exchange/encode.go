package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/goodtune/sitetime/internal/keys"
	"github.com/goodtune/sitetime/internal/usage"
	"gopkg.in/yaml.v3"
)

var csvHeader = []string{
	"Domain",
	"Date",
	"Hour",
	"Daily Time (seconds)",
	"Weekly Time (seconds)",
	"Total Time (seconds)",
}

// Encode writes p to w in format f.
func Encode(w io.Writer, p Payload, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, p)
	case FormatCSV:
		return WriteCSV(w, p.Data)
	case FormatYAML:
		return WriteYAML(w, p)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteJSON writes the payload as indented JSON.
func WriteJSON(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes one row per (domain, day) and one per (domain, hour).
// Day rows carry the matching ISO week total; hour rows leave it blank and
// put the hour's seconds in the daily column.
func WriteCSV(w io.Writer, snap usage.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, domain := range sortedKeys(snap) {
		rec := snap[domain]
		if rec == nil {
			continue
		}
		total := strconv.FormatInt(rec.TotalTime, 10)

		for _, day := range sortedKeys(rec.DailyData) {
			weekly := ""
			if week, err := keys.WeekOfDay(day); err == nil {
				weekly = strconv.FormatInt(rec.WeeklyData[week], 10)
			}
			row := []string{domain, day, "", strconv.FormatInt(rec.DailyData[day], 10), weekly, total}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}

		for _, hourKey := range sortedKeys(rec.HourlyData) {
			day, hour, err := keys.SplitHour(hourKey)
			if err != nil {
				// Keep foreign keys visible rather than dropping their seconds.
				day, hour = hourKey, ""
			}
			row := []string{domain, day, hour, strconv.FormatInt(rec.HourlyData[hourKey], 10), "", total}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteYAML writes the payload as YAML with the same field names as the JSON export.
func WriteYAML(w io.Writer, p Payload) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var generic map[string]any
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toYAMLValue(generic)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// toYAMLValue turns json.Number into int64 so YAML emits plain integers.
func toYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = toYAMLValue(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = toYAMLValue(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
