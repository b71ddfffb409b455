package main

import (
	"errors"
	"fmt"

	"github.com/0xlemi/intonote/internal/config"
	"github.com/0xlemi/intonote/internal/tuning"
	"github.com/spf13/cobra"
)

var (
	intervalTarget    float64
	intervalSemitones int
)

var intervalCmd = &cobra.Command{
	Use:   "interval",
	Short: "Convert between a frequency and an interval above the reference",
	Long: `interval with --target reports the interval of a frequency above the
reference note. With --semitones it goes the other way and prints the
frequency of that interval. Both honour --system and --scale.`,
	Example: `  intonote interval --target 330
  intonote interval --semitones 7 --system just
  intonote interval --ref 60 --semitones 6 --scale major`,
	Args: cobra.NoArgs,
	RunE: runInterval,
}

func init() {
	f := intervalCmd.Flags()
	f.Float64Var(&intervalTarget, "target", 0, "frequency in Hz to express as an interval")
	f.IntVar(&intervalSemitones, "semitones", 0, "interval above the reference to express as a frequency")
	intervalCmd.MarkFlagsMutuallyExclusive("target", "semitones")
	intervalCmd.MarkFlagsOneRequired("target", "semitones")
}

func runInterval(cmd *cobra.Command, _ []string) error {
	if !tuning.ValidMIDI(cfg.ReferenceMIDI) {
		return fmt.Errorf("%w: reference note %d outside 0..127", config.ErrInvalid, cfg.ReferenceMIDI)
	}
	root := cfg.ReferenceHz()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "reference %s (%.2f Hz), %s, %s\n",
		tuning.NoteName(cfg.ReferenceMIDI), root, cfg.TuningSystem, cfg.Scale)

	if cmd.Flags().Changed("semitones") {
		freq := tuning.IntervalFrequencyScaleAware(cfg.TuningSystem, root, intervalSemitones, cfg.Scale)
		note := tuning.FrequencyToNote(freq)
		fmt.Fprintf(out, "%+d st -> %.2f Hz (%s %+.1fc)\n", intervalSemitones, freq, note, note.Cents)
		return nil
	}

	if intervalTarget <= 0 {
		return errors.New("target frequency must be positive")
	}
	interval := tuning.FrequencyToIntervalSemitonesScaleAware(cfg.TuningSystem, root, intervalTarget, cfg.Scale)
	note := tuning.FrequencyToNote(intervalTarget)
	fmt.Fprintf(out, "%.2f Hz (%s %+.1fc) -> %s\n", intervalTarget, note, note.Cents, interval)
	return nil
}
