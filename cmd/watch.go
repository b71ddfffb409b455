package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xlemi/intonote/internal/engine"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/tuning"
	"github.com/0xlemi/intonote/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	watchSource  sourceFlags
	watchLogFile string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the live pitch and interval in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.Float64Var(&cfg.TestSignalHz, "test-signal", 0, "use a sine of this frequency instead of the microphone")
	f.StringVar(&watchSource.file, "file", "", "replay a WAV or FLAC file instead of the microphone")
	f.Float32Var(&cfg.Amplification, "amplification", 8, "microphone gain")
	f.StringVar(&watchSource.optimize, "optimize", "none", "adjust the window: none, latency or accuracy")
	f.BoolVar(&watchSource.spectrum, "spectrum", true, "show the strongest spectral peak")
	f.StringVar(&watchLogFile, "log-file", "", "write logs to this file (the terminal belongs to the UI)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	// the screen is owned by bubbletea, so logs go to a file or nowhere
	var logger logging.Logger = logging.NoOpLogger{}
	if watchLogFile != "" {
		f, err := tea.LogToFile(watchLogFile, "intonote")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		fileLogger := logging.NewWriterLogger(f)
		level, _ := logging.ParseLevel(logLevel)
		fileLogger.SetLevel(level)
		logger = fileLogger
	}

	opts, err := watchSource.engineOptions(logger)
	if err != nil {
		return err
	}
	source, sourceName, err := watchSource.open(true, 0, logger)
	if err != nil {
		return err
	}

	var program *tea.Program
	eng, err := engine.New(cfg, source, func(ev engine.Event) {
		if r, ok := ev.Latest(); ok {
			program.Send(ui.ReadingMsg{Reading: r, PeakHz: ev.PeakHz, LevelDB: ev.LevelDB})
			return
		}
		program.Send(ui.ClearMsg{LevelDB: ev.LevelDB})
	}, opts...)
	if err != nil {
		release(source, logger)
		return err
	}

	header := ui.Header{
		Reference: fmt.Sprintf("%s (%.2f Hz)", tuning.NoteName(cfg.ReferenceMIDI), eng.RootHz()),
		System:    cfg.TuningSystem.String(),
		Scale:     cfg.Scale.String(),
		Source:    sourceName,
	}
	program = tea.NewProgram(ui.NewModel(header, eng.Analyzer()), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "engine stopped")
		return err
	}
	return nil
}
