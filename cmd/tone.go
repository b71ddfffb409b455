package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/0xlemi/intonote/internal/audio"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/spf13/cobra"
)

var (
	toneFreq    float64
	toneSeconds float64
	toneOut     string
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Write a sine tone to a WAV file",
	Long: `tone renders the same sine the test signal produces into a 16-bit mono
WAV file, which can be replayed with --file.`,
	Example: "  intonote tone --freq 330 --seconds 2 --out e4.wav",
	Args:    cobra.NoArgs,
	RunE:    runTone,
}

func init() {
	f := toneCmd.Flags()
	f.Float64Var(&toneFreq, "freq", 440, "frequency of the sine in Hz")
	f.Float64Var(&toneSeconds, "seconds", 1, "length of the tone")
	f.StringVarP(&toneOut, "out", "o", "tone.wav", "output WAV path")
}

func runTone(cmd *cobra.Command, _ []string) error {
	if toneSeconds <= 0 || math.IsNaN(toneSeconds) {
		return errors.New("seconds must be positive")
	}
	logger := logging.Global().WithFields(logging.Fields{"command": "tone"})

	sig := audio.NewTestSignal(toneFreq, cfg.SampleRate, 0, audio.WithSignalLogger(logger))
	samples := make([]float32, int(toneSeconds*float64(cfg.SampleRate)))
	sig.Fill(samples)

	if err := audio.WriteWAV(toneOut, samples, cfg.SampleRate); err != nil {
		return err
	}
	logger.Info("tone written", logging.Fields{"path": toneOut, "samples": len(samples)})
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %.2f Hz for %.2fs to %s\n", sig.Frequency(), toneSeconds, toneOut)
	return nil
}
