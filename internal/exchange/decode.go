package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goodtune/sitetime/internal/usage"
)

// MaxImportSize bounds the bytes read from an import source.
const MaxImportSize = 64 << 20

// FormatError describes why an import payload was rejected.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return "invalid import payload: " + e.Reason
	}
	return fmt.Sprintf("invalid import payload: %s: %s", e.Field, e.Reason)
}

func formatErr(field, format string, args ...any) *FormatError {
	return &FormatError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type rawRecord struct {
	TotalTime  *json.Number           `json:"totalTime"`
	Sessions   []json.RawMessage      `json:"sessions"`
	HourlyData map[string]json.Number `json:"hourlyData"`
	DailyData  map[string]json.Number `json:"dailyData"`
	WeeklyData map[string]json.Number `json:"weeklyData"`
}

// Decode reads an export payload and returns its data as a snapshot.
// Anything other than an object of domain records with non-negative whole
// numbers yields a *FormatError.
func Decode(r io.Reader) (usage.Snapshot, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if len(body) > MaxImportSize {
		return nil, formatErr("", "payload exceeds %d bytes", MaxImportSize)
	}
	return DecodeBytes(body)
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(body []byte) (usage.Snapshot, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, formatErr("", "not a JSON object: %v", err)
	}

	rawData, ok := envelope["data"]
	if !ok || isNull(rawData) {
		return nil, formatErr("data", "missing")
	}

	var domains map[string]json.RawMessage
	if err := json.Unmarshal(rawData, &domains); err != nil {
		return nil, formatErr("data", "must be an object of domain records")
	}

	snap := make(usage.Snapshot, len(domains))
	for domain, raw := range domains {
		if strings.TrimSpace(domain) == "" {
			return nil, formatErr("data", "empty domain name")
		}
		rec, err := decodeRecord(domain, raw)
		if err != nil {
			return nil, err
		}
		snap[domain] = rec
	}
	return snap, nil
}

func decodeRecord(domain string, raw json.RawMessage) (*usage.Record, error) {
	field := "data." + domain

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, formatErr(field, "must be an object")
	}

	var rr rawRecord
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&rr); err != nil {
		return nil, formatErr(field, "%v", err)
	}

	rec := usage.NewRecord()
	if rr.TotalTime != nil {
		n, err := seconds(*rr.TotalTime)
		if err != nil {
			return nil, formatErr(field+".totalTime", "%v", err)
		}
		rec.TotalTime = n
	}
	if rr.Sessions != nil {
		rec.Sessions = rr.Sessions
	}

	buckets := []struct {
		name string
		src  map[string]json.Number
		dst  map[string]int64
	}{
		{"hourlyData", rr.HourlyData, rec.HourlyData},
		{"dailyData", rr.DailyData, rec.DailyData},
		{"weeklyData", rr.WeeklyData, rec.WeeklyData},
	}
	for _, b := range buckets {
		for key, value := range b.src {
			n, err := seconds(value)
			if err != nil {
				return nil, formatErr(field+"."+b.name+"."+key, "%v", err)
			}
			b.dst[key] = n
		}
	}
	return rec, nil
}

// seconds parses a non-negative whole number. 12.0 is accepted, 12.5 is not.
func seconds(n json.Number) (int64, error) {
	if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("must be non-negative, got %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not a number: %s", n)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a whole number of seconds, got %s", n)
	}
	if f < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", n)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("out of range: %s", n)
	}
	return int64(f), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
