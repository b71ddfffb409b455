package analyzer

import (
	"sync"

	"github.com/0xlemi/intonote/internal/pitch"
)

// Guarded shares one Analyzer between goroutines behind a single mutex.
// The audio side analyzes through Do while pollers read snapshots.
type Guarded struct {
	mu       sync.Mutex
	analyzer *Analyzer
}

// NewGuarded wraps a.
func NewGuarded(a *Analyzer) *Guarded {
	return &Guarded{analyzer: a}
}

// Do runs fn with exclusive access to the analyzer. fn must not retain it.
func (g *Guarded) Do(fn func(*Analyzer) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.analyzer)
}

// Metrics returns a metrics snapshot.
func (g *Guarded) Metrics() PerformanceMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.analyzer.Metrics()
}

// LatestPitchData returns the most recent detection, if any.
func (g *Guarded) LatestPitchData() (pitch.PitchResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.analyzer.LatestPitchData()
}

// SetEnabled turns detection on or off.
func (g *Guarded) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyzer.SetEnabled(enabled)
}

// ResetMetrics clears all statistics.
func (g *Guarded) ResetMetrics() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyzer.ResetMetrics()
}
