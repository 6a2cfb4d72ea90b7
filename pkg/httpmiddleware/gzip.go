package httpmiddleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
)

// minGzipSize is the smallest body worth compressing.
const minGzipSize = 512

// Gzip compresses responses for clients that accept gzip. Bodies shorter than
// minGzipSize are sent as is.
func Gzip(level int) Middleware {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	pool := &sync.Pool{New: func() any {
		w, _ := pgzip.NewWriterLevel(nil, level)
		return w
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipWriter{ResponseWriter: w, pool: pool}
			defer gw.finish()
			next.ServeHTTP(gw, r)
		})
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			continue
		}
		return strings.ReplaceAll(params, " ", "") != "q=0"
	}
	return false
}

// gzipWriter buffers the head of the body and decides on compression once
// minGzipSize bytes are written or the handler returns.
type gzipWriter struct {
	http.ResponseWriter
	pool *sync.Pool

	status  int
	buf     []byte
	zw      *pgzip.Writer
	decided bool
}

func (w *gzipWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.decided {
		if w.zw != nil {
			return w.zw.Write(b)
		}
		return w.ResponseWriter.Write(b)
	}
	w.buf = append(w.buf, b...)
	if len(w.buf) >= minGzipSize {
		if err := w.decide(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (w *gzipWriter) decide(large bool) error {
	w.decided = true
	h := w.Header()
	compress := large &&
		h.Get("Content-Encoding") == "" &&
		w.status != http.StatusNoContent &&
		w.status != http.StatusNotModified

	if compress {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		w.zw = w.pool.Get().(*pgzip.Writer)
		w.zw.Reset(w.ResponseWriter)
	}
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)

	buf := w.buf
	w.buf = nil
	if len(buf) == 0 {
		return nil
	}
	var err error
	if w.zw != nil {
		_, err = w.zw.Write(buf)
	} else {
		_, err = w.ResponseWriter.Write(buf)
	}
	return err
}

func (w *gzipWriter) Flush() {
	if !w.decided {
		_ = w.decide(len(w.buf) >= minGzipSize)
	}
	if w.zw != nil {
		_ = w.zw.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *gzipWriter) finish() {
	if !w.decided {
		if w.status == 0 && len(w.buf) == 0 {
			return
		}
		_ = w.decide(false)
	}
	if w.zw != nil {
		_ = w.zw.Close()
		w.pool.Put(w.zw)
		w.zw = nil
	}
}
