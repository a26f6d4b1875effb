package usage

import (
	"encoding/json"
	"fmt"
	"math"
)

// Merge combines two independently accumulated snapshots. Domains present in
// only one side are copied unchanged; shared domains sum totalTime and every
// bucket, and concatenate sessions with base first. Neither input is mutated.
// A sum that does not fit in int64 fails with ErrOverflow.
func Merge(base, incoming Snapshot) (Snapshot, error) {
	out := base.Clone()
	for domain, in := range incoming {
		if in == nil {
			continue
		}
		existing, ok := out[domain]
		if !ok {
			out[domain] = in.Clone()
			continue
		}
		if err := mergeRecord(existing, in); err != nil {
			return nil, fmt.Errorf("merge %s: %w", domain, err)
		}
	}
	return out, nil
}

// mergeRecord folds src into dst. dst must be exclusively owned by the caller.
func mergeRecord(dst, src *Record) error {
	dst.normalize()
	total, err := addSeconds(dst.TotalTime, src.TotalTime)
	if err != nil {
		return fmt.Errorf("totalTime: %w", err)
	}
	dst.TotalTime = total
	for _, s := range src.Sessions {
		dst.Sessions = append(dst.Sessions, append(json.RawMessage(nil), s...))
	}
	if err := sumBuckets(dst.HourlyData, src.HourlyData); err != nil {
		return fmt.Errorf("hourlyData: %w", err)
	}
	if err := sumBuckets(dst.DailyData, src.DailyData); err != nil {
		return fmt.Errorf("dailyData: %w", err)
	}
	if err := sumBuckets(dst.WeeklyData, src.WeeklyData); err != nil {
		return fmt.Errorf("weeklyData: %w", err)
	}
	return nil
}

func sumBuckets(dst, src map[string]int64) error {
	for k, v := range src {
		sum, err := addSeconds(dst[k], v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		dst[k] = sum
	}
	return nil
}

// addSeconds adds two second counts. Counts are never negative, so only the
// upper bound is checked.
func addSeconds(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}
