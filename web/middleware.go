package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatusWriter stores the status code written to the inner ResponseWriter.
type StatusWriter struct {
	http.ResponseWriter
	Status int
	Bytes  int
}

func (w *StatusWriter) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.Bytes += n
	return n, err
}

func (w *StatusWriter) WriteHeader(statusCode int) {
	w.Status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Hijack lets websocket upgrades through the wrapper.
func (w *StatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("web: response writer can't be hijacked")
	}
	w.Status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func NilHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func wrapStatusWriter(wr http.ResponseWriter) *StatusWriter {
	if sw, ok := wr.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{
		ResponseWriter: wr,
		Status:         http.StatusOK, // handlers might not call WriteHeader at all
	}
}

// Logger logs every request handled by handler, at debug level unless
// verbose is set.
func Logger(handler http.Handler, name string, verbose bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		sw := wrapStatusWriter(w)
		handler.ServeHTTP(sw, r)

		lvl := zerolog.DebugLevel
		if verbose {
			lvl = zerolog.InfoLevel
		}
		if sw.Status >= http.StatusInternalServerError {
			lvl = zerolog.WarnLevel
		}
		log.WithLevel(lvl).
			Str("handler", name).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", sw.Status).
			Int("bytes", sw.Bytes).
			Str("remote", r.RemoteAddr).
			Str("agent", r.UserAgent()).
			Dur("took", time.Since(t0)).
			Msg("http")
	})
}
