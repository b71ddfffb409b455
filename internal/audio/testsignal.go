package audio

import (
	"fmt"
	"math"

	"github.com/0xlemi/intonote/internal/logging"
)

// Fallbacks for an unusable test-signal setup.
const (
	FallbackFrequency = 440.0
	defaultAmplitude  = 0.5
)

// StreamOption configures a TestSignal or a FileSource.
type StreamOption func(*streamOptions)

type streamOptions struct {
	amplitude float64
	paced     bool
	limit     int
	logger    logging.Logger
}

func applyStreamOptions(opts []StreamOption) streamOptions {
	o := streamOptions{amplitude: defaultAmplitude, logger: logging.Global()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithAmplitude sets the peak amplitude of a test signal.
func WithAmplitude(amplitude float64) StreamOption {
	return func(o *streamOptions) { o.amplitude = amplitude }
}

// WithPacing delivers one batch per batch duration, like a real device.
// Without it batches are produced as fast as they are consumed.
func WithPacing() StreamOption {
	return func(o *streamOptions) { o.paced = true }
}

// WithBatchLimit closes Batches after n batches. Zero means unlimited.
func WithBatchLimit(n int) StreamOption {
	return func(o *streamOptions) { o.limit = n }
}

// WithSignalLogger sets where fallbacks are reported.
func WithSignalLogger(logger logging.Logger) StreamOption {
	return func(o *streamOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// TestSignal is a Source producing a continuous sine wave.
type TestSignal struct {
	*pump
	frequency float64
	amplitude float64
	phase     float64
}

// NewTestSignal creates a sine source. A frequency that is not positive or
// lies at or above Nyquist is replaced by 440 Hz and the error is logged.
func NewTestSignal(frequencyHz float64, sampleRate uint32, batchSize int, opts ...StreamOption) *TestSignal {
	o := applyStreamOptions(opts)
	p := newPump(sampleRate, batchSize)
	p.paced, p.limit = o.paced, o.limit

	t := &TestSignal{pump: p, frequency: frequencyHz, amplitude: o.amplitude}

	nyquist := float64(sampleRate) / 2
	if math.IsNaN(frequencyHz) || frequencyHz <= 0 || frequencyHz >= nyquist {
		err := fmt.Errorf("frequency %v Hz outside (0, %v)", frequencyHz, nyquist)
		o.logger.Error(err, "invalid test signal, using fallback", logging.Fields{
			"fallback_hz": FallbackFrequency,
		})
		t.frequency = FallbackFrequency
	}
	return t
}

// Frequency returns the generated frequency after any fallback.
func (t *TestSignal) Frequency() float64 {
	return t.frequency
}

// Fill writes the next len(dst) samples of the sine, continuing the phase
// of previous calls. It must not be mixed with a started source.
func (t *TestSignal) Fill(dst []float32) int {
	step := 2 * math.Pi * t.frequency / float64(t.sampleRate)
	for i := range dst {
		dst[i] = float32(t.amplitude * math.Sin(t.phase))
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return len(dst)
}

// Start launches the generator goroutine.
func (t *TestSignal) Start() error {
	return t.start(t.Fill)
}
