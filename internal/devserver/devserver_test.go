package devserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html><body><p>hi</p></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log(1)"), 0o644))
	return root
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServesOutputWithInjectedScript(t *testing.T) {
	s := New(Options{Root: newRoot(t), LiveReload: true})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<script async src="/__assetpipe/livereload.js"></script></body>`)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	_, body = get(t, ts.URL+"/app.js")
	assert.Equal(t, "console.log(1)", body)

	resp, body = get(t, ts.URL+ScriptPath)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, EventsPath)
}

func TestNoInjectionWithoutLiveReload(t *testing.T) {
	s := New(Options{Root: newRoot(t)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/")
	assert.NotContains(t, body, ScriptPath)
	resp, _ := get(t, ts.URL+ScriptPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInjectorPassesLargeBodiesThrough(t *testing.T) {
	big := strings.Repeat("a", maxInjectSize+10) + "</body>"
	h := injectScript(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, big[:maxInjectSize])
		_, _ = io.WriteString(w, big[maxInjectSize:])
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page.html", nil))
	assert.Equal(t, big, rec.Body.String())
}

type sse struct {
	resp   *http.Response
	reader *bufio.Reader
}

func connect(t *testing.T, s *Server, url string) *sse {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+EventsPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	return &sse{resp: resp, reader: bufio.NewReader(resp.Body)}
}

func (c *sse) next(t *testing.T) Message {
	t.Helper()
	for {
		line, err := c.reader.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(data), &m))
			return m
		}
	}
}

func TestNotifyChoosesInjectOrReload(t *testing.T) {
	s := New(Options{Root: newRoot(t), LiveReload: true})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	c := connect(t, s, ts.URL)
	assert.Equal(t, "text/event-stream", c.resp.Header.Get("Content-Type"))

	s.Notify(nil)
	s.Notify([]string{"main.css"})
	m := c.next(t)
	assert.Equal(t, KindInject, m.Type)
	assert.Equal(t, []string{"main.css"}, m.Paths)

	s.Notify([]string{"main.css", "app.js"})
	assert.Equal(t, KindReload, c.next(t).Type)

	s.NotifyError(errors.New("[transform:error] js-minify failed"))
	m = c.next(t)
	assert.Equal(t, KindError, m.Type)
	assert.Contains(t, m.Message, "js-minify")
}

func TestStatusTracksErrors(t *testing.T) {
	s := New(Options{Root: newRoot(t)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	s.BuildComplete(errors.New("boom"))
	_, body := get(t, ts.URL+StatusPath)
	var st Status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.False(t, st.HasGoodBuild)
	assert.Equal(t, "boom", st.LastError)

	s.NotifyRecovered()
	st = s.Status()
	assert.True(t, st.HasGoodBuild)
	assert.Empty(t, st.LastError)
}

func TestMetricsMounted(t *testing.T) {
	m := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") })
	s := New(Options{Root: newRoot(t), Metrics: m, MetricsPath: "/metrics"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	_, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, "ok", body)
}

func TestHubDropsSlowClients(t *testing.T) {
	h := NewHub(nil)
	h.clients[0] = &lrClient{id: 0, ch: make(chan []byte), done: make(chan struct{})}
	h.Broadcast(Message{Type: KindReload})
	assert.Zero(t, h.Clients())

	h.Shutdown()
	h.Broadcast(Message{Type: KindReload})
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Options{Root: newRoot(t), Addr: "127.0.0.1:0", LiveReload: true})
	require.NoError(t, s.Start(t.Context()))
	_, body := get(t, s.URL()+"app.js")
	assert.Equal(t, "console.log(1)", body)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
