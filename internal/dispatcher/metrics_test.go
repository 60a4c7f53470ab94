package dispatcher

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Record("index", 10*time.Millisecond, StatusHandled)
	m.Record("index", 30*time.Millisecond, StatusError)
	m.Record("users", 50*time.Millisecond, StatusHandled)
	m.Record("", time.Millisecond, StatusNotFound)
	m.Record("", time.Millisecond, StatusCancelled)

	snap := m.Snapshot()
	want := MetricsSnapshot{
		TotalDispatches: 5,
		TotalNotFound:   1,
		TotalCancelled:  1,
		TotalErrors:     1,
		TotalDuration:   92 * time.Millisecond,
		AverageDuration: 92 * time.Millisecond / 5,
		ActionCount:     2,
		Timestamp:       clock,
	}
	if snap != want {
		t.Errorf("Snapshot = %+v, want %+v", snap, want)
	}

	idx, ok := m.Action("index")
	if !ok {
		t.Fatal("no stats for index")
	}
	if idx.Min != 10*time.Millisecond || idx.Max != 30*time.Millisecond {
		t.Errorf("min/max = %v/%v", idx.Min, idx.Max)
	}
	if idx.Average() != 20*time.Millisecond || idx.ErrorRate() != 50 {
		t.Errorf("avg %v rate %v", idx.Average(), idx.ErrorRate())
	}
	if idx.Last != StatusError || !idx.LastAt.Equal(clock) {
		t.Errorf("last = %v at %v", idx.Last, idx.LastAt)
	}
	if _, ok := m.Action(""); ok {
		t.Error("unmatched dispatches should not create an action entry")
	}
}

func TestMetrics_Ranking(t *testing.T) {
	m := NewMetrics()
	m.Record("index", 10*time.Millisecond, StatusHandled)
	m.Record("index", 30*time.Millisecond, StatusHandled)
	m.Record("users", 50*time.Millisecond, StatusHandled)
	m.Record("about", 5*time.Millisecond, StatusHandled)

	names := func(list []ActionStats) []string {
		out := make([]string, len(list))
		for i, a := range list {
			out[i] = a.Name
		}
		return out
	}

	tests := []struct {
		name string
		got  []ActionStats
		want []string
	}{
		{"busiest", m.Busiest(2), []string{"index", "about"}},
		{"slowest", m.Slowest(5), []string{"users", "index", "about"}},
		{"none", m.Busiest(0), []string{}},
		{"negative", m.Slowest(-1), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(tt.got)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.Record("index", time.Millisecond, StatusHandled)
	m.Reset()
	if m.Snapshot().TotalDispatches != 0 {
		t.Error("Reset kept totals")
	}
	if _, ok := m.Action("index"); ok {
		t.Error("Reset kept action stats")
	}
	m.Record("index", time.Millisecond, StatusHandled)
	if s, _ := m.Action("index"); s.Count != 1 {
		t.Errorf("Count after reset = %d", s.Count)
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusHandled:   "handled",
		StatusNotFound:  "not found",
		StatusCancelled: "cancelled",
		StatusError:     "error",
		Status(42):      "unknown",
		Status(-1):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
