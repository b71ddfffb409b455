package analyzer

import "time"

// Real-time targets for one analysis cycle.
const (
	LatencyBudgetMs  = 50.0
	MaxViolationRate = 0.05

	latencyEMAAlpha = 0.1
)

// PerformanceMetrics is a snapshot of the analyzer's rolling statistics.
type PerformanceMetrics struct {
	LatestLatencyMs  float64
	AverageLatencyMs float64 // exponential moving average, alpha 0.1
	MaxLatencyMs     float64
	MinLatencyMs     float64

	AnalysisCycles       uint64
	SuccessfulDetections uint64
	FailedDetections     uint64
	LatencyViolations    uint64 // cycles slower than LatencyBudgetMs
	SuccessRate          float64

	MemoryUsageBytes int
	DetectionTimeUs  float64 // time inside the estimator during the latest cycle
}

// MeetsRequirements reports whether the average latency is within budget and
// at most 5% of the cycles exceeded it.
func (m PerformanceMetrics) MeetsRequirements() bool {
	if m.AnalysisCycles == 0 {
		return true
	}
	violationRate := float64(m.LatencyViolations) / float64(m.AnalysisCycles)
	return m.AverageLatencyMs <= LatencyBudgetMs && violationRate <= MaxViolationRate
}

// record folds one finished cycle into m and reports whether it violated
// the latency budget.
func (m *PerformanceMetrics) record(latency, detection time.Duration, success bool) bool {
	ms := float64(latency.Nanoseconds()) / 1e6

	m.AnalysisCycles++
	if success {
		m.SuccessfulDetections++
	} else {
		m.FailedDetections++
	}

	m.LatestLatencyMs = ms
	if m.AnalysisCycles == 1 {
		m.AverageLatencyMs = ms
		m.MaxLatencyMs = ms
		m.MinLatencyMs = ms
	} else {
		m.AverageLatencyMs = latencyEMAAlpha*ms + (1-latencyEMAAlpha)*m.AverageLatencyMs
		m.MaxLatencyMs = max(m.MaxLatencyMs, ms)
		m.MinLatencyMs = min(m.MinLatencyMs, ms)
	}

	violated := ms > LatencyBudgetMs
	if violated {
		m.LatencyViolations++
	}
	m.SuccessRate = float64(m.SuccessfulDetections) / float64(m.AnalysisCycles)
	m.DetectionTimeUs = float64(detection.Nanoseconds()) / 1e3
	return violated
}
