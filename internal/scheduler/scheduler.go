// Package scheduler runs task sequences in strict order and reports on them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/task"
)

// Outcome is the final status of a sequence.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// TaskResult records one task execution.
type TaskResult struct {
	Task     string        `json:"task"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report summarises one sequence run.
type Report struct {
	BuildID string       `json:"build_id"`
	Entry   string       `json:"entry"`
	Outcome Outcome      `json:"outcome"`
	Error   string       `json:"error,omitempty"`
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Tasks   []TaskResult `json:"tasks"`
}

// Duration is the wall time of the sequence.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// TaskError names the task that stopped a sequence.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %s: %v", e.Task, e.Err) }
func (e *TaskError) Unwrap() error { return e.Err }

// Observer receives lifecycle callbacks. Calls happen on the goroutine
// running the sequence.
type Observer interface {
	OnTaskStart(buildID, name string)
	OnTaskComplete(buildID string, res TaskResult)
	OnSequenceComplete(r *Report)
}

// Scheduler executes sequences one task at a time.
type Scheduler struct {
	logger    *slog.Logger
	recorder  metrics.Recorder
	observers []Observer
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New creates a scheduler logging to logger (slog.Default when nil).
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{logger: logger, recorder: metrics.NoopRecorder{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes seq in order. The next task starts only after the previous
// one returned; the first failure stops the sequence and is returned as a
// *TaskError. Completed tasks are not rolled back. A context canceled
// between tasks ends the sequence as canceled.
func (s *Scheduler) Run(ctx context.Context, entry string, seq task.Sequence) (*Report, error) {
	rep := &Report{BuildID: uuid.NewString(), Entry: entry, Start: s.now(), Tasks: make([]TaskResult, 0, len(seq))}
	log := s.logger.With(logfields.BuildID(rep.BuildID), logfields.Entry(entry))
	log.Info("Sequence started", slog.Any("tasks", seq.Names()))

	var runErr error
	for _, t := range seq {
		if err := ctx.Err(); err != nil {
			runErr = &TaskError{Task: t.Name(), Err: err}
			break
		}
		runErr = s.runTask(ctx, log, rep, t)
		if runErr != nil {
			break
		}
	}

	rep.End = s.now()
	switch {
	case runErr == nil:
		rep.Outcome = OutcomeSuccess
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		rep.Outcome = OutcomeCanceled
		rep.Error = runErr.Error()
	default:
		rep.Outcome = OutcomeFailed
		rep.Error = runErr.Error()
	}

	s.recorder.ObserveSequenceDuration(entry, rep.Duration())
	s.recorder.IncSequenceOutcome(entry, outcomeLabel(rep.Outcome))
	for _, o := range s.observers {
		o.OnSequenceComplete(rep)
	}

	attrs := []any{slog.String("outcome", string(rep.Outcome)), logfields.DurationMS(float64(rep.Duration().Milliseconds()))}
	if runErr != nil {
		log.Error("Sequence stopped", append(attrs, logfields.Error(runErr))...)
		return rep, runErr
	}
	log.Info("Sequence complete", attrs...)
	return rep, nil
}

func (s *Scheduler) runTask(ctx context.Context, log *slog.Logger, rep *Report, t task.Task) error {
	name := t.Name()
	for _, o := range s.observers {
		o.OnTaskStart(rep.BuildID, name)
	}
	log.Debug("Task started", logfields.Task(name))

	t0 := s.now()
	err := t.Run(ctx)
	res := TaskResult{Task: name, Duration: s.now().Sub(t0), Result: string(metrics.ResultSuccess)}
	label := metrics.ResultSuccess
	if err != nil {
		label = metrics.ResultFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			label = metrics.ResultCanceled
		}
		res.Result = string(label)
		res.Error = err.Error()
	}
	rep.Tasks = append(rep.Tasks, res)

	s.recorder.ObserveTaskDuration(name, res.Duration)
	s.recorder.IncTaskResult(name, label)
	for _, o := range s.observers {
		o.OnTaskComplete(rep.BuildID, res)
	}

	if err != nil {
		return &TaskError{Task: name, Err: err}
	}
	log.Info("Task complete", logfields.Task(name), logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return nil
}

func outcomeLabel(o Outcome) metrics.ResultLabel {
	switch o {
	case OutcomeSuccess:
		return metrics.ResultSuccess
	case OutcomeCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
