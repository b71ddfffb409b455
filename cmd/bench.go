package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/0xlemi/intonote/internal/analyzer"
	"github.com/0xlemi/intonote/internal/engine"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	benchSource  sourceFlags
	benchSeconds float64
	benchFreq    float64
	benchJSON    bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure analysis latency against the real-time budget",
	Long: `bench feeds a synthetic tone (or a file) through the pipeline as fast as
it is consumed and reports latency statistics per analysis cycle. The run
passes when the average stays within 50 ms and at most 5% of the cycles
exceed it.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.Float64Var(&benchSeconds, "seconds", 5, "seconds of synthetic audio to analyze")
	f.Float64Var(&benchFreq, "freq", 440, "frequency of the synthetic tone")
	f.StringVar(&benchSource.file, "file", "", "analyze a WAV or FLAC file instead of a tone")
	f.StringVar(&benchSource.optimize, "optimize", "none", "adjust the window: none, latency or accuracy")
	f.BoolVar(&benchSource.spectrum, "spectrum", false, "include the spectral peak readout in the timing")
	f.BoolVar(&benchJSON, "json", false, "print the report as JSON")
}

// benchReport summarizes one run.
type benchReport struct {
	Batches          int     `json:"batches"`
	Cycles           uint64  `json:"cycles"`
	Detections       uint64  `json:"detections"`
	SuccessRate      float64 `json:"success_rate"`
	MeanLatencyMs    float64 `json:"mean_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	MaxLatencyMs     float64 `json:"max_latency_ms"`
	EMALatencyMs     float64 `json:"ema_latency_ms"`
	Violations       uint64  `json:"latency_violations"`
	MedianFrequency  float64 `json:"median_frequency_hz"`
	MemoryUsageBytes int     `json:"memory_usage_bytes"`
	MeetsBudget      bool    `json:"meets_budget"`
}

func runBench(cmd *cobra.Command, _ []string) error {
	logger := logging.Global().WithFields(logging.Fields{"command": "bench"})

	limit := 0
	if benchSource.file == "" {
		cfg.TestSignalHz = benchFreq
		limit = max(int(math.Ceil(benchSeconds*float64(cfg.SampleRate)/float64(cfg.BatchSize))), 1)
	}
	opts, err := benchSource.engineOptions(logger)
	if err != nil {
		return err
	}
	source, sourceName, err := benchSource.open(false, limit, logger)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !benchJSON && limit > 0 {
		bar = progressbar.NewOptions(limit,
			progressbar.OptionSetDescription("analyzing "+sourceName),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowIts(),
		)
	}

	var (
		report    benchReport
		latencies []float64
		freqs     []float64
		last      analyzer.PerformanceMetrics
	)
	eng, err := engine.New(cfg, source, func(ev engine.Event) {
		report.Batches++
		// the latest cycle of each batch stands in for the batch
		if ev.Metrics.AnalysisCycles > last.AnalysisCycles {
			latencies = append(latencies, ev.Metrics.LatestLatencyMs)
		}
		last = ev.Metrics
		for _, r := range ev.Readings {
			freqs = append(freqs, float64(r.Pitch.Frequency))
		}
		if bar != nil {
			bar.Add(1)
		}
	}, opts...)
	if err != nil {
		release(source, logger)
		return err
	}

	if err := eng.Run(cmd.Context()); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	summarize(&report, eng.Analyzer().Metrics(), latencies, freqs)
	return printReport(cmd.OutOrStdout(), report)
}

func summarize(report *benchReport, m analyzer.PerformanceMetrics, latencies, freqs []float64) {
	report.Cycles = m.AnalysisCycles
	report.Detections = m.SuccessfulDetections
	report.SuccessRate = m.SuccessRate
	report.MaxLatencyMs = m.MaxLatencyMs
	report.EMALatencyMs = m.AverageLatencyMs
	report.Violations = m.LatencyViolations
	report.MemoryUsageBytes = m.MemoryUsageBytes
	report.MeetsBudget = m.MeetsRequirements()

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		report.MeanLatencyMs = stat.Mean(latencies, nil)
		report.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, latencies, nil)
	}
	if len(freqs) > 0 {
		sort.Float64s(freqs)
		report.MedianFrequency = stat.Quantile(0.5, stat.Empirical, freqs, nil)
	}
}

func printReport(w io.Writer, r benchReport) error {
	if benchJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	verdict := "PASS"
	if !r.MeetsBudget {
		verdict = "FAIL"
	}
	_, err := fmt.Fprintf(w,
		"batches %d, cycles %d, detections %d (%.1f%%)\n"+
			"latency mean %.3f ms, p95 %.3f ms, max %.3f ms, ema %.3f ms\n"+
			"violations %d, median pitch %.2f Hz, memory %d bytes\n"+
			"real-time budget: %s\n",
		r.Batches, r.Cycles, r.Detections, 100*r.SuccessRate,
		r.MeanLatencyMs, r.P95LatencyMs, r.MaxLatencyMs, r.EMALatencyMs,
		r.Violations, r.MedianFrequency, r.MemoryUsageBytes, verdict)
	return err
}
