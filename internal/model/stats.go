package model

import "sync"

// RunStats is the shared counter/metric map for one run. Workers, the
// coverage analyzer, and the aggregator all write to it concurrently, so
// every access goes through the mutex. Values are float64 because coverage
// percentages share the map with plain counters.
type RunStats struct {
	mu     sync.Mutex
	values map[string]float64
}

// Keys the aggregate report depends on. They must exist (zero-valued) even
// for a run that attempted nothing, so percentage math never sees a missing
// key.
var requiredStatKeys = []string{
	"total.passes",
	"total.fails",
	"total.timeouts",
	"total.disabled",
}

// NewRunStats returns an empty stats map with the required keys
// zero-initialized.
func NewRunStats() *RunStats {
	s := &RunStats{values: make(map[string]float64)}
	for _, k := range requiredStatKeys {
		s.values[k] = 0
	}
	return s
}

// Set stores a value, overwriting any previous one.
func (s *RunStats) Set(key string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Add increments a key by delta, creating it if absent.
func (s *RunStats) Add(key string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] += delta
}

// Get returns the value for key and whether it was present.
func (s *RunStats) Get(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a copy of the current values, safe for serialization.
func (s *RunStats) Snapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
