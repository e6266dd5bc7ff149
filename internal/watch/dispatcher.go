package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Reporter is told about failing and recovering reruns.
type Reporter interface {
	NotifyError(err error)
	// NotifyRecovered is called once no binding is failing any more.
	NotifyRecovered()
}

type bindingState struct {
	binding Binding
	timer   *time.Timer
	gen     uint64
	running bool
	pending bool
}

type fired struct {
	name string
	gen  uint64
}

type runResult struct {
	name     string
	err      error
	duration time.Duration
}

// Dispatcher is the single consumer of the event queue. Each binding is
// debounced on its own; a change arriving while the binding's task runs
// queues exactly one follow-up run, so the last run sees the final content.
// Different bindings run concurrently.
type Dispatcher struct {
	states   map[string]*bindingState
	debounce time.Duration
	reporter Reporter
	recorder metrics.Recorder
	logger   *slog.Logger

	fire    chan fired
	done    chan runResult
	failing map[string]error
	wg      sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithReporter sets where failures are pushed.
func WithReporter(r Reporter) DispatcherOption {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher for bindings. A debounce of zero or
// less runs a task as soon as its event is dequeued.
func NewDispatcher(bindings []Binding, debounce time.Duration, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		states:   make(map[string]*bindingState, len(bindings)),
		debounce: debounce,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		fire:     make(chan fired),
		done:     make(chan runResult),
		failing:  map[string]error{},
	}
	for _, b := range bindings {
		d.states[b.Name] = &bindingState{binding: b}
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run drains events until ctx is done or the queue is closed, then waits for
// running tasks to return. Task failures never stop the loop.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	stop := make(chan struct{})
	defer func() {
		close(stop)
		for _, st := range d.states {
			if st.timer != nil {
				st.timer.Stop()
			}
		}
		d.wg.Wait()
	}()

	running := 0
	for {
		if events == nil && running == 0 && !d.timersArmed() {
			return nil
		}
		select {
		case <-ctx.Done():
			go func() {
				for range d.done {
				}
			}()
			d.wg.Wait()
			close(d.done)
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			st, known := d.states[ev.Binding]
			if !known {
				continue
			}
			d.recorder.IncWatchEvent(ev.Binding)
			d.schedule(ctx, st, stop, &running)
		case f := <-d.fire:
			st := d.states[f.name]
			if st == nil || f.gen != st.gen {
				continue
			}
			st.timer = nil
			d.start(ctx, st, &running)
		case res := <-d.done:
			running--
			st := d.states[res.name]
			st.running = false
			d.finish(res)
			if st.pending {
				st.pending = false
				d.start(ctx, st, &running)
			}
		}
	}
}

func (d *Dispatcher) timersArmed() bool {
	for _, st := range d.states {
		if st.timer != nil {
			return true
		}
	}
	return false
}

func (d *Dispatcher) schedule(ctx context.Context, st *bindingState, stop <-chan struct{}, running *int) {
	if d.debounce <= 0 {
		d.start(ctx, st, running)
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.gen++
	f := fired{name: st.binding.Name, gen: st.gen}
	st.timer = time.AfterFunc(d.debounce, func() {
		select {
		case d.fire <- f:
		case <-stop:
		}
	})
}

func (d *Dispatcher) start(ctx context.Context, st *bindingState, running *int) {
	if st.running {
		st.pending = true
		return
	}
	st.running = true
	*running++
	d.wg.Add(1)
	b := st.binding
	go func() {
		defer d.wg.Done()
		t0 := time.Now()
		err := b.Task.Run(ctx)
		d.done <- runResult{name: b.Name, err: err, duration: time.Since(t0)}
	}()
}

func (d *Dispatcher) finish(res runResult) {
	log := d.logger.With(logfields.Binding(res.name))
	if res.err != nil {
		d.recorder.IncWatchRun(res.name, metrics.ResultFailed)
		log.Error("Rerun failed; keeping previous output", logfields.Error(res.err))
		d.failing[res.name] = res.err
		if d.reporter != nil {
			d.reporter.NotifyError(res.err)
		}
		return
	}
	d.recorder.IncWatchRun(res.name, metrics.ResultSuccess)
	log.Info("Rerun complete", logfields.DurationMS(float64(res.duration.Milliseconds())))
	if _, was := d.failing[res.name]; was {
		delete(d.failing, res.name)
		if len(d.failing) == 0 && d.reporter != nil {
			d.reporter.NotifyRecovered()
		}
	}
}
