package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/strip"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rkjdid/util"
	"github.com/rs/zerolog/log"

	_ "net/http/pprof"
)

type ServerConfig struct {
	ListenAddr        string        `toml:"listen_addr" yaml:"listen_addr"`
	Verbose           bool          `toml:"verbose" yaml:"verbose"`
	WebsocketInterval util.Duration `toml:"websocket_interval" yaml:"websocket_interval"`
	Pprof             bool          `toml:"pprof" yaml:"pprof"`
}

var DefaultServerConfig = ServerConfig{
	ListenAddr:        "localhost:3636",
	WebsocketInterval: util.Duration(time.Second),
}

// maxFrameBytes bounds a single channel write: MaxPixels RGBW pixels.
const maxFrameBytes = pbx.MaxPixels * 4

type Server struct {
	Config *ServerConfig
	Strip  *strip.Strip

	version    string
	router     *mux.Router
	wsUpgrader *websocket.Upgrader
	httpServer *http.Server
}

// NewServer returns a Server exposing s over HTTP.
func NewServer(version string, s *strip.Strip, cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = &DefaultServerConfig
	}
	srv := &Server{
		Config:  cfg,
		Strip:   s,
		version: version,
	}
	srv.wsUpgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	verbose := cfg.Verbose
	srv.router = mux.NewRouter()

	if cfg.Pprof {
		srv.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	}

	// shh
	srv.router.Handle("/favicon.ico", http.HandlerFunc(NilHandler))

	srv.router.Handle("/websocket",
		Logger(http.HandlerFunc(srv.Websocket), "ws", verbose)).
		Methods("GET")
	srv.router.Handle("/snapshot",
		Logger(http.HandlerFunc(srv.Snapshot), "snapshot", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/channels",
		Logger(http.HandlerFunc(srv.Channels), "channels", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/channels/{n:[0-9]+}",
		Logger(http.HandlerFunc(srv.WriteChannel), "write", verbose)).
		Methods("PUT", "POST")
	srv.router.Handle("/draw",
		Logger(http.HandlerFunc(srv.Draw), "draw", verbose)).
		Methods("POST")
	srv.router.Handle("/version",
		Logger(http.HandlerFunc(srv.Version), "version", verbose)).
		Methods("GET", "HEAD")

	srv.httpServer = &http.Server{
		Handler:      srv.router,
		Addr:         cfg.ListenAddr,
		WriteTimeout: 4 * time.Second,
		ReadTimeout:  4 * time.Second,
	}
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server fails or is shut down.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.Config.ListenAddr).Msg("web: listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Snapshot encodes the strip snapshot as json to w.
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Strip.Snapshot())
}

// Channels encodes the configured channels as json to w.
func (s *Server) Channels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Strip.Channels())
}

// WriteChannel sends the request body as the pixels of channel {n}. With
// ?draw=1 the strip is drawn afterwards.
func (s *Server) WriteChannel(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["n"], 10, 8)
	if err != nil {
		http.Error(w, "channel out of range", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}
	if len(body) > maxFrameBytes {
		http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err = s.Strip.Write(uint8(n), body); err != nil {
		httpError(w, err)
		return
	}
	if draw, _ := strconv.ParseBool(r.URL.Query().Get("draw")); draw {
		if err = s.Strip.Draw(); err != nil {
			httpError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Draw latches written channels to the LEDs.
func (s *Server) Draw(w http.ResponseWriter, r *http.Request) {
	if err := s.Strip.Draw(); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, s.version)
}

// Websocket upgrades the connection, then pushes a snapshot every
// WebsocketInterval (or ?poll=<duration>). Binary messages are channel
// writes, [channel][pixel bytes...]; the text message "draw" draws.
func (s *Server) Websocket(w http.ResponseWriter, r *http.Request) {
	interval := time.Duration(s.Config.WebsocketInterval)
	if v := r.URL.Query().Get("poll"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	if interval <= 0 {
		interval = time.Second
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		log.Debug().Err(err).Msg("websocket: upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes + 1)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Dur("poll", interval).Msg("websocket: subscription")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err = s.handleMessage(mt, msg); err != nil {
				log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("websocket: message")
			}
		}
	}()

	go func() {
		defer conn.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := conn.WriteJSON(s.Strip.Snapshot()); err != nil {
				log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket: lost connection")
				return
			}
			select {
			case <-ticker.C:
			case <-done:
				return
			}
		}
	}()
}

func (s *Server) handleMessage(mt int, msg []byte) error {
	switch mt {
	case websocket.BinaryMessage:
		if len(msg) < 1 {
			return pbx.ErrInvalidArgument
		}
		return s.Strip.Write(msg[0], msg[1:])
	case websocket.TextMessage:
		if string(msg) == "draw" {
			return s.Strip.Draw()
		}
		return fmt.Errorf("unexpected command %q", msg)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("web: encoding json")
	}
}

// httpError maps strip and pbx errors to a status code.
func httpError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, strip.ErrUnknownChannel):
		code = http.StatusNotFound
	case errors.Is(err, pbx.ErrInvalidArgument), errors.Is(err, pbx.ErrOutOfRange):
		code = http.StatusBadRequest
	case errors.Is(err, strip.ErrClosed),
		errors.Is(err, pbx.ErrNotConnected),
		errors.Is(err, pbx.ErrTransmissionFailed):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}
