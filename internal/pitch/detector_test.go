package pitch

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

const testSampleRate = 48000

func sine(freqHz, amplitude float64, length int) []float32 {
	out := make([]float32, length)
	step := 2 * math.Pi * freqHz / testSampleRate
	for i := range out {
		out[i] = float32(amplitude * math.Sin(step*float64(i)))
	}
	return out
}

type fakeClock struct{ now float64 }

func (c *fakeClock) NowMs() float64 { return c.now }

func newTestDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d, err := New(cfg, testSampleRate)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*Config)
		sampleRate uint32
		wantSubstr string
	}{
		{"window not multiple", func(c *Config) { c.WindowSize = 1000 }, testSampleRate, "multiple of 128"},
		{"window zero", func(c *Config) { c.WindowSize = 0 }, testSampleRate, "cannot be zero"},
		{"window negative", func(c *Config) { c.WindowSize = -128 }, testSampleRate, "multiple of 128"},
		{"sample rate zero", func(c *Config) {}, 0, "sample rate"},
		{"power zero", func(c *Config) { c.PowerThreshold = 0 }, testSampleRate, "power threshold"},
		{"clarity high", func(c *Config) { c.ClarityThreshold = 1.1 }, testSampleRate, "between 0.0 and 1.0"},
		{"clarity negative", func(c *Config) { c.ClarityThreshold = -0.1 }, testSampleRate, "between 0.0 and 1.0"},
		{"padding too big", func(c *Config) { c.PaddingSize = 2048 }, testSampleRate, "padding size"},
		{"min zero", func(c *Config) { c.MinFrequency = 0 }, testSampleRate, "min frequency"},
		{"max equal min", func(c *Config) { c.MaxFrequency = c.MinFrequency }, testSampleRate, "greater than minimum"},
		{"max below min", func(c *Config) { c.MaxFrequency = 10 }, testSampleRate, "greater than minimum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, tt.sampleRate)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("errors.Is(%v, ErrInvalidConfig) = false", err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(testSampleRate); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestAnalyzeShapeMismatch(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())
	_, _, err := d.Analyze(make([]float32, 1000))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Analyze() error = %v, want ErrShapeMismatch", err)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())
	res, ok, err := d.Analyze(make([]float32, 1024))
	if err != nil {
		t.Fatalf("Analyze(silence) error = %v, want nil", err)
	}
	if ok {
		t.Fatalf("Analyze(silence) = %+v, want no pitch", res)
	}
}

func TestAnalyzeBelowPowerThreshold(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())
	res, ok, err := d.Analyze(sine(440, 0.05, 1024))
	if err != nil || ok {
		t.Fatalf("Analyze(quiet) = %+v, %v, %v; want no pitch", res, ok, err)
	}
}

func TestAnalyzeNonFinite(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())
	samples := sine(440, 0.5, 1024)
	samples[10] = float32(math.NaN())
	if _, _, err := d.Analyze(samples); !errors.Is(err, ErrAlgorithm) {
		t.Fatalf("Analyze(NaN) error = %v, want ErrAlgorithm", err)
	}
}

func TestAnalyzeSine(t *testing.T) {
	t.Parallel()

	for _, want := range []float64{82.41, 85, 90, 98, 110, 220, 329.63, 440, 880, 1500, 1990} {
		t.Run(fmt.Sprintf("%.2fHz", want), func(t *testing.T) {
			t.Parallel()

			d := newTestDetector(t, DefaultConfig())
			res, ok, err := d.Analyze(sine(want, 0.5, 1024))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !ok {
				t.Fatal("Analyze() found no pitch")
			}
			if got := float64(res.Frequency); math.Abs(got-want) > want*0.01 {
				t.Fatalf("Frequency = %.2f, want %.2f", got, want)
			}
			if res.Clarity < 0.9 || res.Clarity > 1 {
				t.Fatalf("Clarity = %v, want in [0.9, 1]", res.Clarity)
			}
			if res.Timestamp < 0 {
				t.Fatalf("Timestamp = %v, want >= 0", res.Timestamp)
			}
		})
	}
}

func TestAnalyzeOutOfRange(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxFrequency = 400
	d := newTestDetector(t, cfg)
	res, ok, err := d.Analyze(sine(440, 0.5, 1024))
	if err != nil || ok {
		t.Fatalf("Analyze(out of range) = %+v, %v, %v; want no pitch", res, ok, err)
	}
}

func TestAnalyzeUsesClock(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: 1234.5}
	d, err := New(DefaultConfig(), testSampleRate, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	res, ok, err := d.Analyze(sine(440, 0.5, 1024))
	if err != nil || !ok {
		t.Fatalf("Analyze() = %+v, %v, %v", res, ok, err)
	}
	if res.Timestamp != 1234.5 {
		t.Fatalf("Timestamp = %v, want 1234.5", res.Timestamp)
	}
}

func TestUpdateConfig(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())
	before := d.MemoryUsageBytes()

	bad := DefaultConfig()
	bad.ClarityThreshold = 2
	if err := d.UpdateConfig(bad); err == nil {
		t.Fatal("UpdateConfig(bad) error = nil")
	}
	if d.Config() != DefaultConfig() {
		t.Fatalf("Config() changed after failed update: %+v", d.Config())
	}

	next := DefaultConfig()
	next.WindowSize = 2048
	next.PaddingSize = 1024
	if err := d.UpdateConfig(next); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if d.MemoryUsageBytes() <= before {
		t.Fatalf("MemoryUsageBytes() = %d, want more than %d after growing", d.MemoryUsageBytes(), before)
	}
	if _, _, err := d.Analyze(make([]float32, 1024)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Analyze(old size) error = %v, want ErrShapeMismatch", err)
	}
	res, ok, err := d.Analyze(sine(220, 0.5, 2048))
	if err != nil || !ok {
		t.Fatalf("Analyze(new size) = %+v, %v, %v", res, ok, err)
	}
}

func TestWindowAdvisories(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, DefaultConfig())

	latency := []struct {
		targetMs float64
		want     int
	}{
		{1000, 4096},
		{200, 2048},
		{50, 512},
		{20, 256},
		{1, 256},
	}
	for _, tt := range latency {
		if got := d.OptimalWindowSizeForLatency(tt.targetMs); got != tt.want {
			t.Fatalf("OptimalWindowSizeForLatency(%v) = %d, want %d", tt.targetMs, got, tt.want)
		}
	}

	accuracy := []struct {
		minHz float64
		want  int
	}{
		{1000, 1024},
		{80, 2048},
		{50, 2944},
		{20, 4096},
	}
	for _, tt := range accuracy {
		cfg := DefaultConfig()
		cfg.MinFrequency = tt.minHz
		if err := d.UpdateConfig(cfg); err != nil {
			t.Fatal(err)
		}
		if got := d.AccuracyOptimizedWindowSize(); got != tt.want {
			t.Fatalf("AccuracyOptimizedWindowSize(min=%v) = %d, want %d", tt.minHz, got, tt.want)
		}
	}
}

func TestAnalyzeWithoutPadding(t *testing.T) {
	t.Parallel()

	for _, padding := range []int{0, 128, 512, 1024} {
		cfg := DefaultConfig()
		cfg.PaddingSize = padding
		d := newTestDetector(t, cfg)
		for _, want := range []float64{220, 440} {
			res, ok, err := d.Analyze(sine(want, 0.5, 1024))
			if err != nil || !ok {
				t.Fatalf("padding %d: Analyze(%v Hz) = %+v, %v, %v", padding, want, res, ok, err)
			}
			if got := float64(res.Frequency); math.Abs(got-want) > want*0.005 {
				t.Fatalf("padding %d: Frequency = %.2f, want %.2f", padding, got, want)
			}
		}
	}
}

func TestLagRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size  int
		minHz float64
		want  int
	}{
		{1024, 80, 896},  // capped at 7/8 of the window
		{1024, 160, 512}, // 452 needed, half the window is the floor
		{1024, 100, 722}, // 1.5 periods of 480 samples plus 2
		{2048, 1000, 1024},
	}
	for _, tt := range tests {
		if got := lagRange(tt.size, testSampleRate, tt.minHz); got != tt.want {
			t.Fatalf("lagRange(%d, %v) = %d, want %d", tt.size, tt.minHz, got, tt.want)
		}
	}

	// the lag range follows MinFrequency across UpdateConfig
	d := newTestDetector(t, DefaultConfig())
	cfg := DefaultConfig()
	cfg.MinFrequency = 200
	if err := d.UpdateConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if d.algo.maxLag != 512 {
		t.Fatalf("maxLag after UpdateConfig = %d, want 512", d.algo.maxLag)
	}
	if _, ok, _ := d.Analyze(sine(82.41, 0.5, 1024)); ok {
		t.Fatal("Analyze(82.41 Hz) found a pitch below MinFrequency")
	}
}

func TestAnalyzeDoesNotAllocate(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())
	tone := sine(440, 0.5, 1024)
	silence := make([]float32, 1024)

	if allocs := testing.AllocsPerRun(50, func() {
		if _, ok, err := d.Analyze(tone); err != nil || !ok {
			t.Fatalf("Analyze() = %v, %v", ok, err)
		}
	}); allocs != 0 {
		t.Fatalf("Analyze(tone) allocs = %v, want 0", allocs)
	}
	if allocs := testing.AllocsPerRun(50, func() {
		d.Analyze(silence)
	}); allocs != 0 {
		t.Fatalf("Analyze(silence) allocs = %v, want 0", allocs)
	}
}
