package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for task sequences, watch-triggered
// reruns and live reload. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	ObserveSequenceDuration(entry string, d time.Duration)
	IncSequenceOutcome(entry string, outcome ResultLabel)
	IncWatchEvent(binding string)
	IncWatchRun(binding string, result ResultLabel)
	IncReload(kind string) // kind: reload|inject|error
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration)     {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)             {}
func (NoopRecorder) ObserveSequenceDuration(string, time.Duration) {}
func (NoopRecorder) IncSequenceOutcome(string, ResultLabel)        {}
func (NoopRecorder) IncWatchEvent(string)                          {}
func (NoopRecorder) IncWatchRun(string, ResultLabel)               {}
func (NoopRecorder) IncReload(string)                              {}
