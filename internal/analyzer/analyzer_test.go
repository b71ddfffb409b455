package analyzer

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xlemi/intonote/internal/buffer"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/pitch"
)

const testSampleRate = 48000

func sine(freqHz float64, length int) []float32 {
	out := make([]float32, length)
	step := 2 * math.Pi * freqHz / testSampleRate
	for i := range out {
		out[i] = float32(0.5 * math.Sin(step*float64(i)))
	}
	return out
}

// steppingClock advances by step on every reading.
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	a, err := New(pitch.DefaultConfig(), testSampleRate, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNewInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := pitch.DefaultConfig()
	cfg.WindowSize = 1000
	if _, err := New(cfg, testSampleRate); !errors.Is(err, pitch.ErrInvalidConfig) {
		t.Fatalf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestAnalyzeSamplesShapeMismatch(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	_, _, err := a.AnalyzeSamples(make([]float32, 100))
	if !errors.Is(err, pitch.ErrShapeMismatch) {
		t.Fatalf("AnalyzeSamples() error = %v, want ErrShapeMismatch", err)
	}
	m := a.Metrics()
	if m.AnalysisCycles != 1 || m.FailedDetections != 1 {
		t.Fatalf("cycles = %d, failed = %d; want 1, 1", m.AnalysisCycles, m.FailedDetections)
	}
}

func TestAnalyzeSamplesSilence(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	res, ok, err := a.AnalyzeSamples(make([]float32, a.WindowSize()))
	if err != nil || ok {
		t.Fatalf("AnalyzeSamples(silence) = %+v, %v, %v; want no pitch", res, ok, err)
	}
	if m := a.Metrics(); m.FailedDetections != 1 || m.SuccessRate != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestAnalyzeSamplesSine(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	res, ok, err := a.AnalyzeSamples(sine(440, a.WindowSize()))
	if err != nil {
		t.Fatalf("AnalyzeSamples() error = %v", err)
	}
	if !ok {
		t.Fatal("AnalyzeSamples() found no pitch")
	}
	if math.Abs(float64(res.Frequency)-440) > 50 {
		t.Fatalf("Frequency = %v, want within 50 Hz of 440", res.Frequency)
	}
	if res.Clarity > 1 || res.Timestamp < 0 {
		t.Fatalf("Clarity = %v, Timestamp = %v", res.Clarity, res.Timestamp)
	}

	latest, ok := a.LatestPitchData()
	if !ok || latest != res {
		t.Fatalf("LatestPitchData() = %+v, %v; want %+v", latest, ok, res)
	}

	m := a.Metrics()
	if m.SuccessfulDetections != 1 || m.SuccessRate != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.MemoryUsageBytes <= a.WindowSize()*4 {
		t.Fatalf("MemoryUsageBytes = %d, want more than the window alone", m.MemoryUsageBytes)
	}

	// a silent cycle returns to the idle state
	if _, _, err := a.AnalyzeSamples(make([]float32, a.WindowSize())); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.LatestPitchData(); ok {
		t.Fatal("LatestPitchData() ok = true after silence")
	}
}

func TestAnalyzeSamplesDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	in := sine(440, a.WindowSize())
	if _, _, err := a.AnalyzeSamples(in); err != nil {
		t.Fatal(err)
	}
	if &a.window[0] == &in[0] {
		t.Fatal("analysis window aliases caller samples")
	}
}

func TestSetEnabled(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	if _, _, err := a.AnalyzeSamples(sine(440, a.WindowSize())); err != nil {
		t.Fatal(err)
	}
	a.SetEnabled(false)
	res, ok, err := a.AnalyzeSamples(sine(440, a.WindowSize()))
	if err != nil || ok {
		t.Fatalf("disabled AnalyzeSamples() = %+v, %v, %v; want no pitch", res, ok, err)
	}
	if _, ok := a.LatestPitchData(); ok {
		t.Fatal("LatestPitchData() ok = true while disabled")
	}
	if m := a.Metrics(); m.AnalysisCycles != 2 || m.FailedDetections != 1 {
		t.Fatalf("cycles = %d, failed = %d; want 2, 1", m.AnalysisCycles, m.FailedDetections)
	}
}

func TestAnalyzeBatchDirect(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	w := a.WindowSize()
	results, err := a.AnalyzeBatchDirect(sine(440, w*7/2))
	if err != nil {
		t.Fatalf("AnalyzeBatchDirect() error = %v", err)
	}
	if got := a.Metrics().AnalysisCycles; got != 3 {
		t.Fatalf("AnalysisCycles = %d, want 3", got)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	results, err = a.AnalyzeBatchDirect(make([]float32, w-1))
	if err != nil || len(results) != 0 {
		t.Fatalf("short batch = %d results, %v", len(results), err)
	}
	if got := a.Metrics().AnalysisCycles; got != 3 {
		t.Fatalf("AnalysisCycles = %d after short batch, want 3", got)
	}
}

func TestAnalyzeBatchWithOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		overlap float64
		length  int // in windows, times 2
		want    uint64
	}{
		{"half", 0.5, 4, 3},
		{"none", 0, 4, 2},
		{"negative clamps to none", -1, 4, 2},
		{"above max clamps to 0.9", 5, 4, 11},
		{"shorter than a window", 0.5, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := newTestAnalyzer(t)
			w := a.WindowSize()
			if _, err := a.AnalyzeBatchWithOverlap(sine(440, w*tt.length/2), tt.overlap); err != nil {
				t.Fatalf("AnalyzeBatchWithOverlap() error = %v", err)
			}
			if got := a.Metrics().AnalysisCycles; got != tt.want {
				t.Fatalf("AnalysisCycles = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcessContinuousFromBuffer(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	w := a.WindowSize()
	cb, err := buffer.NewCircularBuffer(4 * w)
	if err != nil {
		t.Fatal(err)
	}
	blocks, err := buffer.NewBlockExtractor(cb, w, buffer.WindowNone)
	if err != nil {
		t.Fatal(err)
	}

	if res, ok, err := a.AnalyzeFromBuffer(blocks); ok || err != nil {
		t.Fatalf("AnalyzeFromBuffer(empty) = %+v, %v, %v", res, ok, err)
	}
	if a.Metrics().AnalysisCycles != 0 {
		t.Fatal("empty buffer counted a cycle")
	}

	cb.Write(sine(440, w*5/2))
	results, err := a.ProcessContinuousFromBuffer(blocks)
	if err != nil {
		t.Fatalf("ProcessContinuousFromBuffer() error = %v", err)
	}
	if len(results) != 2 || a.Metrics().AnalysisCycles != 2 {
		t.Fatalf("results = %d, cycles = %d; want 2, 2", len(results), a.Metrics().AnalysisCycles)
	}
	if cb.Available() != w/2 {
		t.Fatalf("Available() = %d, want %d", cb.Available(), w/2)
	}
}

func TestRecordCycleEMA(t *testing.T) {
	t.Parallel()

	var m PerformanceMetrics
	m.record(10*time.Millisecond, time.Millisecond, true)
	if m.AverageLatencyMs != 10 || m.MaxLatencyMs != 10 || m.MinLatencyMs != 10 {
		t.Fatalf("after first cycle: %+v", m)
	}

	m.record(20*time.Millisecond, 2*time.Millisecond, false)
	want := 0.1*20 + 0.9*10
	if math.Abs(m.AverageLatencyMs-want) > 1e-9 {
		t.Fatalf("AverageLatencyMs = %v, want %v", m.AverageLatencyMs, want)
	}
	if m.MaxLatencyMs != 20 || m.MinLatencyMs != 10 || m.LatestLatencyMs != 20 {
		t.Fatalf("max = %v, min = %v, latest = %v", m.MaxLatencyMs, m.MinLatencyMs, m.LatestLatencyMs)
	}
	if m.SuccessRate != 0.5 || m.DetectionTimeUs != 2000 {
		t.Fatalf("SuccessRate = %v, DetectionTimeUs = %v", m.SuccessRate, m.DetectionTimeUs)
	}
	if m.LatencyViolations != 0 || !m.MeetsRequirements() {
		t.Fatalf("violations = %d, meets = %v", m.LatencyViolations, m.MeetsRequirements())
	}

	if !m.record(51*time.Millisecond, 0, false) {
		t.Fatal("record(51ms) did not report a violation")
	}
	if m.LatencyViolations != 1 || m.MeetsRequirements() {
		t.Fatalf("violations = %d, meets = %v; want 1, false", m.LatencyViolations, m.MeetsRequirements())
	}
}

func TestLatencyViolationLogged(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a := newTestAnalyzer(t, WithLogger(logging.NewWriterLogger(&out)))
	clock := &steppingClock{t: time.Unix(0, 0), step: 20 * time.Millisecond}
	a.now = clock.now

	// four clock readings: latency 60ms, detection 20ms
	if _, _, err := a.AnalyzeSamples(sine(440, a.WindowSize())); err != nil {
		t.Fatal(err)
	}
	m := a.Metrics()
	if m.LatestLatencyMs != 60 || m.DetectionTimeUs != 20000 {
		t.Fatalf("latency = %v, detection = %v", m.LatestLatencyMs, m.DetectionTimeUs)
	}
	if m.LatencyViolations != 1 {
		t.Fatalf("LatencyViolations = %d, want 1", m.LatencyViolations)
	}
	if !strings.Contains(out.String(), "[WARN] analysis cycle exceeded latency budget") {
		t.Fatalf("log = %q", out.String())
	}

	a.ResetMetrics()
	if m := a.Metrics(); m.AnalysisCycles != 0 || m.LatencyViolations != 0 || m.MemoryUsageBytes == 0 {
		t.Fatalf("after reset: %+v", m)
	}
}

func TestOptimize(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	changed, err := a.OptimizeForLatency(50)
	if err != nil || !changed {
		t.Fatalf("OptimizeForLatency(50) = %v, %v", changed, err)
	}
	if a.WindowSize() != 512 || a.Config().PaddingSize != 256 {
		t.Fatalf("window = %d, padding = %d; want 512, 256", a.WindowSize(), a.Config().PaddingSize)
	}
	if changed, _ := a.OptimizeForLatency(50); changed {
		t.Fatal("second OptimizeForLatency(50) reported a change")
	}

	changed, err = a.OptimizeForAccuracy()
	if err != nil || !changed {
		t.Fatalf("OptimizeForAccuracy() = %v, %v", changed, err)
	}
	if a.WindowSize() != 2048 || a.Config().WindowSize != 2048 {
		t.Fatalf("window = %d, config window = %d; want 2048", a.WindowSize(), a.Config().WindowSize)
	}
	res, ok, err := a.AnalyzeSamples(sine(220, 2048))
	if err != nil || !ok {
		t.Fatalf("AnalyzeSamples() after resize = %+v, %v, %v", res, ok, err)
	}
}

func TestUpdateConfigInvalidKeepsState(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t)
	bad := pitch.DefaultConfig()
	bad.WindowSize = 2048
	bad.MaxFrequency = 1
	if err := a.UpdateConfig(bad); !errors.Is(err, pitch.ErrInvalidConfig) {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if a.WindowSize() != 1024 || a.Config() != pitch.DefaultConfig() {
		t.Fatalf("state changed after failed update: window %d", a.WindowSize())
	}
}

func TestGuardedConcurrent(t *testing.T) {
	t.Parallel()

	g := NewGuarded(newTestAnalyzer(t))
	samples := sine(440, 1024)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = g.Do(func(a *Analyzer) error {
					_, _, err := a.AnalyzeSamples(samples)
					return err
				})
				g.LatestPitchData()
			}
		}()
	}
	wg.Wait()

	if got := g.Metrics().AnalysisCycles; got != 20 {
		t.Fatalf("AnalysisCycles = %d, want 20", got)
	}
}

func TestSteadyStateDoesNotAllocate(t *testing.T) {
	a := newTestAnalyzer(t)
	w := a.WindowSize()
	tone := sine(440, w)
	silence := make([]float32, w)
	batch := sine(440, 4*w)

	// the first batch call may grow the results slice
	if _, err := a.AnalyzeBatchDirect(batch); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func()
	}{
		{"AnalyzeSamples tone", func() { a.AnalyzeSamples(tone) }},
		{"AnalyzeSamples silence", func() { a.AnalyzeSamples(silence) }},
		{"AnalyzeBatchDirect", func() { a.AnalyzeBatchDirect(batch) }},
		{"AnalyzeBatchWithOverlap", func() { a.AnalyzeBatchWithOverlap(batch, 0.5) }},
	}
	for _, tt := range tests {
		if allocs := testing.AllocsPerRun(20, tt.run); allocs != 0 {
			t.Fatalf("%s allocs = %v, want 0", tt.name, allocs)
		}
	}
	if got := a.Metrics().SuccessfulDetections; got == 0 {
		t.Fatal("no detections while measuring")
	}
}
