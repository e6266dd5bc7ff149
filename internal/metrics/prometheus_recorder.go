package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetpipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration     *prom.HistogramVec
	taskResults      *prom.CounterVec
	sequenceDuration *prom.HistogramVec
	sequenceOutcome  *prom.CounterVec
	watchEvents      *prom.CounterVec
	watchRuns        *prom.CounterVec
	reloads          *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of individual tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Task result counts by outcome",
		}, []string{"task", "result"}),
		sequenceDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sequence_duration_seconds",
			Help:      "Total duration of an entry point sequence",
			Buckets:   prom.DefBuckets,
		}, []string{"entry"}),
		sequenceOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_outcomes_total",
			Help:      "Sequence outcomes by final status",
		}, []string{"entry", "outcome"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Filesystem events matched to a watch binding",
		}, []string{"binding"}),
		watchRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_runs_total",
			Help:      "Watch-triggered task runs by outcome",
		}, []string{"binding", "result"}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload messages broadcast to browsers",
		}, []string{"kind"}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.sequenceDuration, pr.sequenceOutcome, pr.watchEvents, pr.watchRuns, pr.reloads)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveSequenceDuration(entry string, d time.Duration) {
	if p == nil {
		return
	}
	p.sequenceDuration.WithLabelValues(entry).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSequenceOutcome(entry string, outcome ResultLabel) {
	if p == nil {
		return
	}
	p.sequenceOutcome.WithLabelValues(entry, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(binding string) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(binding).Inc()
}

func (p *PrometheusRecorder) IncWatchRun(binding string, result ResultLabel) {
	if p == nil {
		return
	}
	p.watchRuns.WithLabelValues(binding, string(result)).Inc()
}

func (p *PrometheusRecorder) IncReload(kind string) {
	if p == nil {
		return
	}
	p.reloads.WithLabelValues(kind).Inc()
}
