package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/0xlemi/intonote/internal/buffer"
	"github.com/0xlemi/intonote/internal/config"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/tuning"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

// flag values shared by every command
var (
	cfg = config.Default()

	systemName      string
	scaleName       string
	modeName        string
	blockWindowName string
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "intonote",
	Short: "Real-time pitch detection and interval training",
	Long: `intonote detects the pitch of a monophonic signal and reports it as an
interval above a reference note, in equal temperament or just intonation,
optionally snapped to a scale.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.Uint32Var(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "sample rate in Hz")
	f.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "samples per delivered batch")
	f.IntVar(&cfg.Detector.WindowSize, "window", cfg.Detector.WindowSize, "analysis window in samples (multiple of 128)")
	f.IntVar(&cfg.Detector.PaddingSize, "padding", cfg.Detector.PaddingSize, "zero padding in samples")
	f.Float64Var(&cfg.Detector.PowerThreshold, "power", cfg.Detector.PowerThreshold, "minimum window power to attempt detection")
	f.Float64Var(&cfg.Detector.ClarityThreshold, "clarity", cfg.Detector.ClarityThreshold, "minimum clarity (0..1) to accept a pitch")
	f.Float64Var(&cfg.Detector.MinFrequency, "min-freq", cfg.Detector.MinFrequency, "lowest accepted frequency in Hz")
	f.Float64Var(&cfg.Detector.MaxFrequency, "max-freq", cfg.Detector.MaxFrequency, "highest accepted frequency in Hz")

	f.IntVar(&cfg.ReferenceMIDI, "ref", cfg.ReferenceMIDI, "reference MIDI note (57 = A3)")
	f.StringVar(&systemName, "system", cfg.TuningSystem.String(), "tuning system: equal or just")
	f.StringVar(&scaleName, "scale", cfg.Scale.String(), "scale: chromatic, major, minor, major-pentatonic, minor-pentatonic")

	f.StringVar(&modeName, "mode", cfg.IngestMode.String(), "ingest mode: direct, overlap or continuous")
	f.Float64Var(&cfg.OverlapFactor, "overlap", cfg.OverlapFactor, "window overlap in overlap mode (0..0.9)")
	f.IntVar(&cfg.BufferCapacity, "buffer", cfg.BufferCapacity, "circular buffer capacity in continuous mode")
	f.StringVar(&blockWindowName, "block-window", cfg.BlockWindow.String(), "taper in continuous mode: none, hann, hamming, blackman")
	f.Float64Var(&cfg.LatencyTargetMs, "latency-target", cfg.LatencyTargetMs, "latency target in ms for --optimize latency")

	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("intonote version {{.Version}}\n")

	rootCmd.AddCommand(watchCmd, benchCmd, intervalCmd, detectCmd, toneCmd)
}

// setup resolves the named flags into cfg and configures logging.
func setup(_ *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logging.Global().SetLevel(level)

	if cfg.TuningSystem, err = tuning.ParseTuningSystem(systemName); err != nil {
		return err
	}
	if cfg.Scale, err = tuning.ParseScale(scaleName); err != nil {
		return err
	}
	if cfg.IngestMode, err = config.ParseIngestMode(modeName); err != nil {
		return err
	}
	if cfg.BlockWindow, err = buffer.ParseWindowFunction(blockWindowName); err != nil {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
