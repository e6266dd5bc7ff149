package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify([]string) { c.n.Add(1) }

func stylesBinding(t *testing.T, bindings []watch.Binding) watch.Binding {
	t.Helper()
	for _, b := range bindings {
		if b.Name == "styles" {
			return b
		}
	}
	t.Fatal("no styles binding")
	return watch.Binding{}
}

func TestRapidWritesRebuildFinalContent(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	styles := filepath.Join(cfg.Root, "src", "styles")
	require.NoError(t, os.MkdirAll(styles, 0o755))
	source := filepath.Join(styles, "a.css")
	require.NoError(t, os.WriteFile(source, []byte("body{color:red}"), 0o644))

	notify := &countingNotifier{}
	project, err := build.Tasks(cfg, build.Production, notify)
	require.NoError(t, err)
	bindings := []watch.Binding{stylesBinding(t, project.WatchBindings())}

	w, err := watch.NewWatcher(cfg.Root, bindings, watch.WithSkipDirs(cfg.OutputRoot()))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	disp := watch.NewDispatcher(bindings, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	watcherDone := make(chan error, 1)
	dispatcherDone := make(chan error, 1)
	go func() { watcherDone <- w.Run(ctx) }()
	go func() { dispatcherDone <- disp.Run(ctx, w.Events()) }()

	require.NoError(t, os.WriteFile(source, []byte("body{color:blue}"), 0o644))
	require.NoError(t, os.WriteFile(source, []byte("body{color:#123456}"), 0o644))

	bundle := filepath.Join(cfg.OutputRoot(), "main.css")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(bundle)
		return err == nil && strings.Contains(string(data), "#123456")
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	for _, done := range []chan error{watcherDone, dispatcherDone} {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch loop did not stop")
		}
	}

	data, err := os.ReadFile(bundle)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#123456")
	assert.NotContains(t, string(data), "red")
	assert.NotContains(t, string(data), "blue")
	assert.NotContains(t, string(data), "#00f")
	assert.GreaterOrEqual(t, notify.n.Load(), int32(1))

	leftovers, err := filepath.Glob(filepath.Join(cfg.OutputRoot(), ".assetpipe-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
