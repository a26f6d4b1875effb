package usage

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func record(total int64, hourly, daily, weekly map[string]int64) *Record {
	return &Record{
		TotalTime:  total,
		Sessions:   []json.RawMessage{},
		HourlyData: hourly,
		DailyData:  daily,
		WeeklyData: weekly,
	}
}

func sampleSnapshots() (Snapshot, Snapshot, Snapshot) {
	x := Snapshot{
		"a.com": record(10,
			map[string]int64{"2024-05-15-12": 10},
			map[string]int64{"2024-05-15": 10},
			map[string]int64{"2024-W20": 10}),
		"b.com": record(5,
			map[string]int64{"2024-05-14-09": 5},
			map[string]int64{"2024-05-14": 5},
			map[string]int64{"2024-W20": 5}),
	}
	y := Snapshot{
		"a.com": record(20,
			map[string]int64{"2024-05-15-12": 5, "2024-05-16-08": 15},
			map[string]int64{"2024-05-15": 5, "2024-05-16": 15},
			map[string]int64{"2024-W20": 20}),
	}
	z := Snapshot{
		"a.com": record(1,
			map[string]int64{"2024-05-20-00": 1},
			map[string]int64{"2024-05-20": 1},
			map[string]int64{"2024-W21": 1}),
		"c.com": record(3,
			map[string]int64{"2024-05-15-12": 3},
			map[string]int64{"2024-05-15": 3},
			map[string]int64{"2024-W20": 3}),
	}
	return x, y, z
}

func mustMerge(t *testing.T, base, incoming Snapshot) Snapshot {
	t.Helper()
	out, err := Merge(base, incoming)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return out
}

// bucketsOf drops sessions so snapshots can be compared on bucket sums only.
func bucketsOf(s Snapshot) map[string][4]any {
	out := make(map[string][4]any, len(s))
	for domain, rec := range s {
		out[domain] = [4]any{rec.TotalTime, rec.HourlyData, rec.DailyData, rec.WeeklyData}
	}
	return out
}

func TestMerge_Associative(t *testing.T) {
	x, y, z := sampleSnapshots()

	left := mustMerge(t, mustMerge(t, x, y), z)
	right := mustMerge(t, x, mustMerge(t, y, z))

	if !reflect.DeepEqual(bucketsOf(left), bucketsOf(right)) {
		t.Fatalf("merge is not associative:\nleft  = %v\nright = %v", bucketsOf(left), bucketsOf(right))
	}
}

func TestMerge_CommutativeOnBuckets(t *testing.T) {
	x, y, _ := sampleSnapshots()

	if !reflect.DeepEqual(bucketsOf(mustMerge(t, x, y)), bucketsOf(mustMerge(t, y, x))) {
		t.Fatal("bucket sums differ between Merge(x, y) and Merge(y, x)")
	}
}

func TestMerge_Identity(t *testing.T) {
	x, _, _ := sampleSnapshots()

	if got := mustMerge(t, x, Snapshot{}); !reflect.DeepEqual(got, x) {
		t.Fatalf("Merge(x, {}) = %v, want %v", got, x)
	}
	if got := mustMerge(t, Snapshot{}, x); !reflect.DeepEqual(got, x) {
		t.Fatalf("Merge({}, x) = %v, want %v", got, x)
	}
	if got := mustMerge(t, x, nil); !reflect.DeepEqual(got, x) {
		t.Fatalf("Merge(x, nil) = %v, want %v", got, x)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	x, y, _ := sampleSnapshots()
	xBefore, yBefore := x.Clone(), y.Clone()

	merged := mustMerge(t, x, y)
	merged["a.com"].HourlyData["2024-05-15-12"] = 1000

	if !reflect.DeepEqual(x, xBefore) {
		t.Error("Merge mutated base")
	}
	if !reflect.DeepEqual(y, yBefore) {
		t.Error("Merge mutated incoming")
	}
}

func TestMerge_SessionsConcatenateBaseFirst(t *testing.T) {
	base := Snapshot{"a.com": NewRecord()}
	base["a.com"].Sessions = []json.RawMessage{json.RawMessage(`{"id":1}`)}
	incoming := Snapshot{"a.com": NewRecord()}
	incoming["a.com"].Sessions = []json.RawMessage{json.RawMessage(`{"id":2}`), json.RawMessage(`{"id":3}`)}

	got := mustMerge(t, base, incoming)["a.com"].Sessions
	want := []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}
	if len(got) != len(want) {
		t.Fatalf("sessions = %s, want %v", got, want)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("session %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMerge_IncomingOnlyDomainsCopied(t *testing.T) {
	_, _, z := sampleSnapshots()

	merged := mustMerge(t, Snapshot{}, z)
	merged["c.com"].TotalTime = 0

	if z["c.com"].TotalTime != 3 {
		t.Fatal("incoming-only record shared memory with the result")
	}
}

func TestMerge_Overflow(t *testing.T) {
	big := func() Snapshot {
		return Snapshot{"a.com": record(5e18,
			map[string]int64{"2024-05-15-12": 5e18},
			map[string]int64{"2024-05-15": 5e18},
			map[string]int64{"2024-W20": 5e18})}
	}

	tests := []struct {
		name     string
		incoming Snapshot
	}{
		{name: "self merge", incoming: big()},
		{name: "total only", incoming: Snapshot{"a.com": record(math.MaxInt64-5e18+1, nil, nil, nil)}},
		{name: "bucket only", incoming: Snapshot{"a.com": record(0, nil, nil, map[string]int64{"2024-W20": math.MaxInt64})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := big()
			before := base.Clone()

			out, err := Merge(base, tt.incoming)
			if !errors.Is(err, ErrOverflow) {
				t.Fatalf("Merge error = %v, want ErrOverflow", err)
			}
			if out != nil {
				t.Errorf("Merge returned %v alongside an error", out)
			}
			if !reflect.DeepEqual(base, before) {
				t.Error("Merge mutated base on overflow")
			}
		})
	}
}

func TestMerge_SumsUpToMaxInt64(t *testing.T) {
	base := Snapshot{"a.com": record(math.MaxInt64-1, nil, nil, nil)}
	incoming := Snapshot{"a.com": record(1, nil, nil, nil)}

	if got := mustMerge(t, base, incoming)["a.com"].TotalTime; got != math.MaxInt64 {
		t.Fatalf("totalTime = %d, want %d", got, int64(math.MaxInt64))
	}
}
