package usecase

// PipelineMetrics receives pipeline observations. The zero dependency is
// noopMetrics so tests and the worker can run without a registry.
type PipelineMetrics interface {
	RecordVerdict(kind string)
	RecordStageDuration(stage string, seconds float64)
	RecordResult(status, reason string, degraded bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordVerdict(string)                {}
func (noopMetrics) RecordStageDuration(string, float64) {}
func (noopMetrics) RecordResult(string, string, bool)   {}
