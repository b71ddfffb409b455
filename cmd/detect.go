package main

import (
	"fmt"

	"github.com/0xlemi/intonote/internal/audio"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/pitch"
	"github.com/0xlemi/intonote/internal/spectrum"
	"github.com/0xlemi/intonote/internal/tuning"
	"github.com/spf13/cobra"
)

var (
	detectFreq      float64
	detectAmplitude float64
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection on a synthetic window",
	Long: `detect synthesizes exactly one analysis window of a sine and runs the
pitch detector and the spectral peak finder on it. Useful for checking
how --window, --clarity and --power affect a given frequency.`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	f := detectCmd.Flags()
	f.Float64Var(&detectFreq, "freq", 440, "frequency of the sine in Hz")
	f.Float64Var(&detectAmplitude, "amplitude", 0.5, "peak amplitude of the sine")
}

func runDetect(cmd *cobra.Command, _ []string) error {
	logger := logging.Global().WithFields(logging.Fields{"command": "detect"})

	detector, err := pitch.New(cfg.Detector, cfg.SampleRate)
	if err != nil {
		return err
	}

	sig := audio.NewTestSignal(detectFreq, cfg.SampleRate, 0,
		audio.WithAmplitude(detectAmplitude), audio.WithSignalLogger(logger))
	window := make([]float32, cfg.Detector.WindowSize)
	sig.Fill(window)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "input %.2f Hz, window %d, padding %d, rate %d Hz\n",
		sig.Frequency(), cfg.Detector.WindowSize, cfg.Detector.PaddingSize, cfg.SampleRate)

	result, ok, err := detector.Analyze(window)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "no pitch")
	} else {
		note := tuning.FrequencyToNote(float64(result.Frequency))
		fmt.Fprintf(out, "pitch %.2f Hz, clarity %.3f, %s %+.1fc\n",
			result.Frequency, result.Clarity, note, note.Cents)
	}

	if peak, ok := spectrum.PeakFrequency(window, cfg.SampleRate, cfg.Detector.MinFrequency, cfg.Detector.MaxFrequency); ok {
		fmt.Fprintf(out, "spectral peak %.2f Hz (bin %d)\n", peak.Frequency, peak.Bin)
	}
	return nil
}
