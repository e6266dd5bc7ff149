// Package task defines the named units of work the scheduler runs and the
// registry that resolves entry points to task sequences.
package task

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Task is a named, runnable unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Sequence is an ordered list of tasks.
type Sequence []Task

// Names lists the task names in order.
func (s Sequence) Names() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.Name()
	}
	return out
}

// Notifier is told which output paths a task rewrote.
type Notifier interface {
	Notify(paths []string)
}

type action struct {
	name string
	fn   func(ctx context.Context) error
}

func (a *action) Name() string                  { return a.name }
func (a *action) Run(ctx context.Context) error { return a.fn(ctx) }

// Action wraps a function as a task.
func Action(name string, fn func(ctx context.Context) error) Task {
	return &action{name: name, fn: fn}
}

// PipelineTask runs one pipeline and reports what it wrote.
type PipelineTask struct {
	Pipeline *pipeline.Pipeline
	Env      pipeline.Env
	Notifier Notifier
}

// FromPipeline builds a task named after p. notify may be nil.
func FromPipeline(p *pipeline.Pipeline, env pipeline.Env, notify Notifier) *PipelineTask {
	return &PipelineTask{Pipeline: p, Env: env, Notifier: notify}
}

func (t *PipelineTask) Name() string { return t.Pipeline.Name }

func (t *PipelineTask) Run(ctx context.Context) error {
	res, err := t.Pipeline.Run(ctx, t.Env)
	if err != nil {
		return err
	}
	if t.Notifier != nil && len(res.Written) > 0 {
		t.Notifier.Notify(res.Written)
	}
	return nil
}

// Clean removes the output root and forgets every output claim, so the
// following pipelines start from an empty tree.
func Clean(root string, ledger *asset.Ledger) Task {
	return Action("clean", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := asset.Clean(root); err != nil {
			return err
		}
		ledger.Reset()
		return nil
	})
}

type parallel struct {
	name  string
	tasks []Task
}

// Parallel runs tasks concurrently and completes when all of them have; the
// first failure is returned and cancels the siblings' context.
func Parallel(name string, tasks ...Task) Task {
	return &parallel{name: name, tasks: tasks}
}

func (p *parallel) Name() string { return p.name }

func (p *parallel) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.tasks {
		g.Go(func() error { return t.Run(gctx) })
	}
	return g.Wait()
}

// Registry maps unique names to tasks.
type Registry struct {
	tasks map[string]Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds t; a second task with the same name is rejected.
func (r *Registry) Register(t Task) error {
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return ferrors.ValidationError("task name is empty").Build()
	}
	if _, dup := r.tasks[name]; dup {
		return ferrors.ValidationError("duplicate task name").WithContext("task", name).Build()
	}
	r.tasks[name] = t
	return nil
}

// Get returns the task registered as name.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns every registered name in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sequence resolves names, in order, to a sequence.
func (r *Registry) Sequence(names ...string) (Sequence, error) {
	seq := make(Sequence, 0, len(names))
	for _, n := range names {
		t, ok := r.tasks[n]
		if !ok {
			return nil, ferrors.ValidationError(fmt.Sprintf("unknown task %q", n)).
				WithContext("available", strings.Join(r.Names(), ",")).Build()
		}
		seq = append(seq, t)
	}
	return seq, nil
}
