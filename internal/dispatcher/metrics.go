package dispatcher

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Status is the outcome of one dispatch.
type Status int

const (
	StatusHandled Status = iota
	StatusNotFound
	StatusCancelled
	StatusError

	numStatuses
)

var statusNames = [numStatuses]string{"handled", "not found", "cancelled", "error"}

func (s Status) String() string {
	if s < 0 || s >= numStatuses {
		return "unknown"
	}
	return statusNames[s]
}

// Stats accumulates the timings and outcomes of a series of dispatches.
type Stats struct {
	Count    uint64
	ByStatus [numStatuses]uint64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	Last     Status
	LastAt   time.Time
}

func (s *Stats) add(d time.Duration, status Status, at time.Time) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	s.Max = max(s.Max, d)
	s.Count++
	s.Total += d
	if status >= 0 && status < numStatuses {
		s.ByStatus[status]++
	}
	s.Last = status
	s.LastAt = at
}

// Average is the mean duration, zero before the first dispatch.
func (s Stats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// ErrorRate is the share of failed dispatches in percent.
func (s Stats) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.ByStatus[StatusError]) * 100 / float64(s.Count)
}

// ActionStats pairs an action name with its statistics.
type ActionStats struct {
	Name string
	Stats
}

// Metrics records dispatch outcomes overall and per action. It is safe
// for concurrent use and is normally shared by every dispatcher of an
// application.
type Metrics struct {
	mu      sync.Mutex
	overall Stats
	actions map[string]*Stats
	now     func() time.Time
}

// NewMetrics returns an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{actions: make(map[string]*Stats), now: time.Now}
}

// Record adds one dispatch. An empty action (nothing matched, or a hook
// stopped the request first) only counts toward the overall figures.
func (m *Metrics) Record(action string, d time.Duration, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	m.overall.add(d, status, at)
	if action == "" {
		return
	}
	s, ok := m.actions[action]
	if !ok {
		s = &Stats{}
		m.actions[action] = s
	}
	s.add(d, status, at)
}

// Action returns the statistics of one action.
func (m *Metrics) Action(name string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.actions[name]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Busiest returns up to n actions, most dispatched first.
func (m *Metrics) Busiest(n int) []ActionStats {
	return m.ranked(n, func(a, b ActionStats) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Name, b.Name))
	})
}

// Slowest returns up to n actions by descending average duration.
func (m *Metrics) Slowest(n int) []ActionStats {
	return m.ranked(n, func(a, b ActionStats) int {
		return cmp.Or(cmp.Compare(b.Average(), a.Average()), cmp.Compare(a.Name, b.Name))
	})
}

func (m *Metrics) ranked(n int, order func(a, b ActionStats) int) []ActionStats {
	m.mu.Lock()
	all := lo.MapToSlice(m.actions, func(name string, s *Stats) ActionStats {
		return ActionStats{Name: name, Stats: *s}
	})
	m.mu.Unlock()

	slices.SortFunc(all, order)
	return all[:min(max(n, 0), len(all))]
}

// Reset forgets everything recorded so far.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overall = Stats{}
	clear(m.actions)
}

// MetricsSnapshot is a point-in-time copy of the overall figures.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalNotFound   uint64
	TotalCancelled  uint64
	TotalErrors     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	ActionCount     int
	Timestamp       time.Time
}

// Snapshot copies the overall figures.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.overall
	return MetricsSnapshot{
		TotalDispatches: o.Count,
		TotalNotFound:   o.ByStatus[StatusNotFound],
		TotalCancelled:  o.ByStatus[StatusCancelled],
		TotalErrors:     o.ByStatus[StatusError],
		TotalDuration:   o.Total,
		AverageDuration: o.Average(),
		ActionCount:     len(m.actions),
		Timestamp:       m.now(),
	}
}
