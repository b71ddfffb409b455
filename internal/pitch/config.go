package pitch

// windowSizeQuantum is the granularity every analysis window must respect.
const windowSizeQuantum = 128

// Config holds the detector parameters. A Config is only ever applied as a
// whole, after Validate succeeds.
type Config struct {
	WindowSize       int     // samples per analysis window, a non-zero multiple of 128
	PowerThreshold   float64 // minimum sum of squared samples to attempt detection
	ClarityThreshold float64 // minimum NSDF peak (0..1) to accept a pitch
	PaddingSize      int     // minimum zero samples appended to the window, at most WindowSize
	MinFrequency     float64 // Hz
	MaxFrequency     float64 // Hz
}

// DefaultConfig returns the configuration used by the application.
func DefaultConfig() Config {
	return Config{
		WindowSize:       1024,
		PowerThreshold:   5.0,
		ClarityThreshold: 0.7,
		PaddingSize:      512,
		MinFrequency:     80,
		MaxFrequency:     2000,
	}
}

// Validate checks c against the bounds of every field for the given sample
// rate. The first violation is returned as a *ConfigError.
func (c Config) Validate(sampleRate uint32) error {
	switch {
	case c.WindowSize == 0:
		return configError("window size", c.WindowSize, "cannot be zero")
	case c.WindowSize < 0 || c.WindowSize%windowSizeQuantum != 0:
		return configError("window size", c.WindowSize, "must be a positive multiple of %d", windowSizeQuantum)
	case sampleRate == 0:
		return configError("sample rate", sampleRate, "must be greater than zero")
	case !(c.PowerThreshold > 0):
		return configError("power threshold", c.PowerThreshold, "must be greater than zero")
	case !(c.ClarityThreshold >= 0 && c.ClarityThreshold <= 1):
		return configError("clarity threshold", c.ClarityThreshold, "must be between 0.0 and 1.0")
	case c.PaddingSize < 0 || c.PaddingSize > c.WindowSize:
		return configError("padding size", c.PaddingSize, "must be between 0 and the window size %d", c.WindowSize)
	case !(c.MinFrequency > 0):
		return configError("min frequency", c.MinFrequency, "must be greater than zero")
	case !(c.MaxFrequency > c.MinFrequency):
		return configError("max frequency", c.MaxFrequency, "must be greater than minimum frequency %v", c.MinFrequency)
	}
	return nil
}
