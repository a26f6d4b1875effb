package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidDelta is returned when a negative number of seconds is applied.
	ErrInvalidDelta = errors.New("delta must be non-negative")

	// ErrInvalidDomain is returned when a domain name is empty.
	ErrInvalidDomain = errors.New("domain is required")

	// ErrOverflow is returned when a sum of seconds does not fit in int64.
	ErrOverflow = errors.New("seconds overflow")

	// ErrDomainNotFound is returned when a domain has no record.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrBackupNotFound is returned when a backup id does not exist.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrCancelled is returned when a destructive operation is declined.
	ErrCancelled = errors.New("operation cancelled")
)

// Record holds the accumulated active time of one domain
type Record struct {
	TotalTime  int64             `json:"totalTime"`
	Sessions   []json.RawMessage `json:"sessions"`
	HourlyData map[string]int64  `json:"hourlyData"`
	DailyData  map[string]int64  `json:"dailyData"`
	WeeklyData map[string]int64  `json:"weeklyData"`
}

// NewRecord returns an empty record with all maps allocated.
func NewRecord() *Record {
	return &Record{
		Sessions:   []json.RawMessage{},
		HourlyData: make(map[string]int64),
		DailyData:  make(map[string]int64),
		WeeklyData: make(map[string]int64),
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return NewRecord()
	}
	out := &Record{
		TotalTime:  r.TotalTime,
		Sessions:   make([]json.RawMessage, len(r.Sessions)),
		HourlyData: cloneBuckets(r.HourlyData),
		DailyData:  cloneBuckets(r.DailyData),
		WeeklyData: cloneBuckets(r.WeeklyData),
	}
	for i, s := range r.Sessions {
		out.Sessions[i] = append(json.RawMessage(nil), s...)
	}
	return out
}

// normalize allocates nil fields so a record encodes with empty collections.
func (r *Record) normalize() {
	if r.Sessions == nil {
		r.Sessions = []json.RawMessage{}
	}
	if r.HourlyData == nil {
		r.HourlyData = make(map[string]int64)
	}
	if r.DailyData == nil {
		r.DailyData = make(map[string]int64)
	}
	if r.WeeklyData == nil {
		r.WeeklyData = make(map[string]int64)
	}
}

func cloneBuckets(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Snapshot is the whole store: domain name to record.
type Snapshot map[string]*Record

// Clone returns a deep copy. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for domain, rec := range s {
		out[domain] = rec.Clone()
	}
	return out
}

// TotalTime sums totalTime across all domains.
func (s Snapshot) TotalTime() int64 {
	var total int64
	for _, rec := range s {
		if rec != nil {
			total += rec.TotalTime
		}
	}
	return total
}

// Encode serialises the snapshot in the persisted layout.
func (s Snapshot) Encode() ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	for _, rec := range s {
		if rec != nil {
			rec.normalize()
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses the persisted layout. Null records are dropped.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		return Snapshot{}, nil
	}
	for domain, rec := range snap {
		if rec == nil {
			delete(snap, domain)
			continue
		}
		rec.normalize()
	}
	return snap, nil
}

// EventKind identifies a destructive store change.
type EventKind string

const (
	EventRestored EventKind = "restored"
	EventCleared  EventKind = "cleared"
	EventMerged   EventKind = "merged"
)

// Event is delivered to subscribers after a destructive change has been persisted.
type Event struct {
	Kind  EventKind
	Sites int
	At    time.Time
}
