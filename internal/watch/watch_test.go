package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/task"
)

func TestShouldIgnoreEvent(t *testing.T) {
	ignored := []string{
		"src/.main.css.tmp", "src/main.css~", "src/.main.css.swp", "src/main.css.swx",
		"src/#main.css#", "src/Thumbs.db", "src/4913",
	}
	for _, p := range ignored {
		assert.True(t, shouldIgnoreEvent(p), p)
	}
	assert.False(t, shouldIgnoreEvent("src/styles/main.css"))
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, []Binding{
		{Name: "styles", Patterns: []string{"src/styles/**/*.css"}},
		{Name: "scripts", Patterns: []string{"src/js/**/*.js", "!src/js/vendor/**"}},
	})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.Equal(t, []string{"styles"}, w.Match("src/styles/a/b.css"))
	assert.Equal(t, []string{"scripts"}, w.Match("src/js/main.js"))
	assert.Empty(t, w.Match("src/js/vendor/lib.js"))
	assert.Empty(t, w.Match("README.md"))
}

func TestWatcherQueuesMatchingChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "styles"), 0o755))
	w, err := NewWatcher(root, []Binding{{Name: "styles", Patterns: []string{"src/styles/**/*.css"}}})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "styles", "main.css"), []byte("a{}"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, "styles", ev.Binding)
		assert.Equal(t, "src/styles/main.css", ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no event queued")
	}
}

func TestWatcherCoversDirectoriesCreatedLater(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, []Binding{{Name: "sprites", Patterns: []string{"src/images/svg/*.svg"}}})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	dir := filepath.Join(root, "src", "images", "svg")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		// Rewrite until the new directories are observed.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.svg"), []byte("<svg/>"), 0o644))
		select {
		case ev := <-w.Events():
			assert.Equal(t, "src/images/svg/icon.svg", ev.Path)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no event from late directory")
		}
	}
}

type countingRecorder struct {
	metrics.NoopRecorder
	events atomic.Int32
}

func (r *countingRecorder) IncWatchEvent(string) { r.events.Add(1) }

type reporter struct {
	mu        sync.Mutex
	errs      []error
	recovered int
	changed   chan struct{}
}

func newReporter() *reporter { return &reporter{changed: make(chan struct{}, 16)} }

func (r *reporter) NotifyError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.changed <- struct{}{}
}

func (r *reporter) NotifyRecovered() {
	r.mu.Lock()
	r.recovered++
	r.mu.Unlock()
	r.changed <- struct{}{}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestDispatcherDebounceCoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	b := Binding{Name: "styles", Task: task.Action("styles", func(context.Context) error {
		runs.Add(1)
		return nil
	})}
	d := NewDispatcher([]Binding{b}, 50*time.Millisecond)

	events := make(chan Event, 10)
	for range 5 {
		events <- Event{Binding: "styles", Path: "src/styles/main.css"}
	}
	close(events)

	require.NoError(t, d.Run(t.Context(), events))
	assert.Equal(t, int32(1), runs.Load())
}

func TestDispatcherQueuesOneFollowUpWhileRunning(t *testing.T) {
	var (
		mu      sync.Mutex
		content = "v1"
		seen    []string
	)
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	b := Binding{Name: "scripts", Task: task.Action("scripts", func(context.Context) error {
		mu.Lock()
		first := len(seen) == 0
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
		mu.Lock()
		seen = append(seen, content)
		mu.Unlock()
		return nil
	})}
	rec := &countingRecorder{}
	d := NewDispatcher([]Binding{b}, 0, WithRecorder(rec))

	events := make(chan Event, 10)
	done := make(chan error, 1)
	go func() { done <- d.Run(t.Context(), events) }()
	events <- Event{Binding: "scripts"}
	waitFor(t, started)

	mu.Lock()
	content = "v4"
	mu.Unlock()
	for range 3 {
		events <- Event{Binding: "scripts"}
	}
	close(events)

	require.Eventually(t, func() bool { return rec.events.Load() == 4 }, 5*time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, []string{"v4", "v4"}, seen)
}

func TestDispatcherRunsBindingsConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	both := make(chan struct{})
	go func() {
		barrier.Wait()
		close(both)
	}()
	mk := func(name string) Binding {
		return Binding{Name: name, Task: task.Action(name, func(ctx context.Context) error {
			barrier.Done()
			select {
			case <-both:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("other binding never ran")
			}
		})}
	}
	rep := newReporter()
	d := NewDispatcher([]Binding{mk("styles"), mk("html")}, 0, WithReporter(rep))

	events := make(chan Event, 2)
	events <- Event{Binding: "styles"}
	events <- Event{Binding: "html"}
	close(events)

	require.NoError(t, d.Run(t.Context(), events))
	assert.Empty(t, rep.errs)
}

func TestDispatcherReportsFailureAndRecovery(t *testing.T) {
	var calls atomic.Int32
	b := Binding{Name: "scripts", Task: task.Action("scripts", func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("Unexpected token")
		}
		return nil
	})}
	rep := newReporter()
	d := NewDispatcher([]Binding{b}, 0, WithReporter(rep))

	ctx, cancel := context.WithCancel(t.Context())
	events := make(chan Event, 2)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, events) }()

	events <- Event{Binding: "scripts"}
	waitFor(t, rep.changed)
	events <- Event{Binding: "scripts"}
	waitFor(t, rep.changed)

	cancel()
	require.NoError(t, <-done)
	require.Len(t, rep.errs, 1)
	assert.Contains(t, rep.errs[0].Error(), "Unexpected token")
	assert.Equal(t, 1, rep.recovered)
}

func TestDispatcherIgnoresUnknownBinding(t *testing.T) {
	d := NewDispatcher(nil, 0)
	events := make(chan Event, 1)
	events <- Event{Binding: "ghost"}
	close(events)
	require.NoError(t, d.Run(t.Context(), events))
}
