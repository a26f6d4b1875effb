package usage

import (
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/sitetime/internal/keys"
)

// Default window lengths of the recent series.
const (
	RecentHourCount = 24
	RecentDayCount  = 7
	RecentWeekCount = 4
)

// DomainSummary is one row of the overview.
type DomainSummary struct {
	Domain    string `json:"domain"`
	TotalTime int64  `json:"totalTime"`
}

// Overview summarises the whole store.
type Overview struct {
	Sites      []DomainSummary `json:"sites"`
	TotalSites int             `json:"totalSites"`
	TotalTime  int64           `json:"totalTime"`
}

// Summarize lists domains by total time, largest first, ties by name.
func Summarize(snap Snapshot) Overview {
	sites := make([]DomainSummary, 0, len(snap))
	var total int64
	for domain, rec := range snap {
		if rec == nil {
			continue
		}
		sites = append(sites, DomainSummary{Domain: domain, TotalTime: rec.TotalTime})
		total += rec.TotalTime
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].TotalTime != sites[j].TotalTime {
			return sites[i].TotalTime > sites[j].TotalTime
		}
		return sites[i].Domain < sites[j].Domain
	})
	return Overview{Sites: sites, TotalSites: len(sites), TotalTime: total}
}

// Point is one bucket of a recent series.
type Point struct {
	Key     string `json:"key"`
	Seconds int64  `json:"seconds"`
}

// RecentHours returns the last n hours ending with the hour of now, oldest first.
func RecentHours(rec *Record, now time.Time, loc *time.Location, n int) []Point {
	return series(n, rec.bucket(func(r *Record) map[string]int64 { return r.HourlyData }), func(i int) string {
		return keys.Hour(now.Add(-time.Duration(i)*time.Hour), loc)
	})
}

// RecentDays returns the last n calendar days ending with today, oldest first.
func RecentDays(rec *Record, now time.Time, loc *time.Location, n int) []Point {
	local := now.In(orLocal(loc))
	return series(n, rec.bucket(func(r *Record) map[string]int64 { return r.DailyData }), func(i int) string {
		return keys.Day(local.AddDate(0, 0, -i), loc)
	})
}

// RecentWeeks returns the last n ISO weeks ending with the current one, oldest first.
func RecentWeeks(rec *Record, now time.Time, loc *time.Location, n int) []Point {
	local := now.In(orLocal(loc))
	return series(n, rec.bucket(func(r *Record) map[string]int64 { return r.WeeklyData }), func(i int) string {
		return keys.Week(local.AddDate(0, 0, -7*i), loc)
	})
}

func series(n int, data map[string]int64, keyAt func(back int) string) []Point {
	if n <= 0 {
		return []Point{}
	}
	points := make([]Point, n)
	for i := 0; i < n; i++ {
		key := keyAt(n - 1 - i)
		points[i] = Point{Key: key, Seconds: data[key]}
	}
	return points
}

func (r *Record) bucket(pick func(*Record) map[string]int64) map[string]int64 {
	if r == nil {
		return nil
	}
	return pick(r)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// FormatSeconds renders seconds as "1h 2m 3s", dropping leading zero units.
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
