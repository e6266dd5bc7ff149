package devserver

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Message kinds pushed to connected browsers.
const (
	KindReload = "reload"
	KindInject = "inject"
	KindError  = "error"
)

// Message is one live reload notification, sent as SSE data.
type Message struct {
	Type    string   `json:"type"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message,omitempty"`
}

const heartbeatInterval = 30 * time.Second

// Hub fans notifications out to SSE clients. Messages are not replayed to
// clients connecting later.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	recorder metrics.Recorder
	closed   bool
}

type lrClient struct {
	id   int
	ch   chan []byte
	done chan struct{}
}

// NewHub creates a hub. A nil recorder disables broadcast metrics.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*lrClient{}, recorder: rec}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &lrClient{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	h.mu.Unlock()
	defer h.removeClient(client.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	ctx := r.Context()
	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			frame = []byte(": ping\n\n")
		case data := <-client.ch:
			frame = append(append([]byte("data: "), data...), '\n', '\n')
		}
		if _, err := bw.Write(frame); err != nil {
			slog.Debug("livereload write", "error", err)
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast sends m to every connected client. Clients whose buffers are
// full are dropped; their browsers reconnect on their own.
func (h *Hub) Broadcast(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("livereload encode", "error", err)
		return
	}
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- data:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncReload(m.Type)
	slog.Debug("livereload broadcast", "type", m.Type, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown disconnects all clients and ignores later broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

// clientScript is served at ScriptPath. Inject messages swap matching
// stylesheet links with a cache-busting query instead of reloading.
const clientScript = `(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  function inject(paths) {
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (paths.some((p) => url.pathname === '/' + p)) {
        url.searchParams.set('_lr', Date.now());
        link.href = url.toString();
      }
    });
  }
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      let m;
      try { m = JSON.parse(e.data); } catch (_) { return; }
      if (m.type === 'reload') location.reload();
      else if (m.type === 'inject') inject(m.paths || []);
      else if (m.type === 'error') console.error('[assetpipe] ' + m.message);
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
