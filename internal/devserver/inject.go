package devserver

import (
	"bytes"
	"net/http"
	"strings"
)

const maxInjectSize = 512 * 1024

var scriptTag = []byte(`<script async src="` + ScriptPath + `"></script></body>`)

// injectScript inserts the live reload client before </body> of HTML
// responses.
func injectScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML body up to maxInjectSize; larger or non-HTML
// bodies are passed through untouched.
type injector struct {
	http.ResponseWriter
	status        int
	buf           []byte
	buffering     bool
	headerWritten bool
	passthrough   bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.headerWritten = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.passthrough && !i.buffering {
		ct := i.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			i.startPassthrough()
			return i.ResponseWriter.Write(data)
		}
		i.buffering = true
	}
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if len(i.buf)+len(data) > maxInjectSize {
		i.startPassthrough()
		if len(i.buf) > 0 {
			if _, err := i.ResponseWriter.Write(i.buf); err != nil {
				return 0, err
			}
			i.buf = nil
		}
		return i.ResponseWriter.Write(data)
	}
	i.buf = append(i.buf, data...)
	return len(data), nil
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	i.headerWritten = true
}

func (i *injector) finalize() {
	if i.passthrough || len(i.buf) == 0 {
		if !i.headerWritten {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}
	out := bytes.Replace(i.buf, []byte("</body>"), scriptTag, 1)
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(out)
}
