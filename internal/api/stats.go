package api

import (
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type sample struct {
	at     time.Time
	ms     float64
	failed bool
}

// RouteStats aggregates the recent requests of one route pattern.
type RouteStats struct {
	Route  string  `json:"route"`
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

// LatencyStats keeps per-route request latencies over a rolling window.
type LatencyStats struct {
	mu      sync.Mutex
	window  time.Duration
	samples map[string][]sample
	now     func() time.Time
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{
		window:  window,
		samples: make(map[string][]sample),
		now:     time.Now,
	}
}

// Record adds one request. Statuses of 500 and above count as errors.
func (s *LatencyStats) Record(route string, d time.Duration, status int) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.samples[route] = append(prune(s.samples[route], now.Add(-s.window)), sample{
		at:     now,
		ms:     float64(d) / float64(time.Millisecond),
		failed: status >= 500,
	})
}

// Snapshot aggregates every route with samples inside the window, sorted
// by route.
func (s *LatencyStats) Snapshot() []RouteStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.window)

	out := []RouteStats{}
	for route, ss := range s.samples {
		ss = prune(ss, cutoff)
		if len(ss) == 0 {
			delete(s.samples, route)
			continue
		}
		s.samples[route] = ss
		out = append(out, aggregate(route, ss))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func prune(ss []sample, cutoff time.Time) []sample {
	return slices.DeleteFunc(ss, func(sm sample) bool { return sm.at.Before(cutoff) })
}

func aggregate(route string, ss []sample) RouteStats {
	ms := make([]float64, len(ss))
	rs := RouteStats{Route: route, Count: len(ss)}
	for i, sm := range ss {
		ms[i] = sm.ms
		if sm.failed {
			rs.Errors++
		}
	}
	sort.Float64s(ms)
	rs.MinMs = floats.Min(ms)
	rs.MaxMs = floats.Max(ms)
	rs.MeanMs = stat.Mean(ms, nil)
	rs.P50Ms = stat.Quantile(0.5, stat.Empirical, ms, nil)
	rs.P95Ms = stat.Quantile(0.95, stat.Empirical, ms, nil)
	return rs
}
