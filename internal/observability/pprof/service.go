// Package pprof serves the runtime profiling endpoints on an optional
// local HTTP listener.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	logx "remindbot/pkg/logx"
)

// Config controls the optional pprof HTTP server.
//
// Binding to a non-loopback address requires Token; profiles leak
// internals and must not be publicly reachable.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

type Service struct {
	log logx.Logger

	mu  sync.Mutex
	cfg Config
	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("pprof: non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(s.cfg.Token, h) }
	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))

	srv := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No write timeout: profile and trace streams run long.
		IdleTimeout: time.Minute,
	}
	s.srv = srv
	s.ln = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server stopped", logx.Err(err))
		}
	}()

	s.log.Info("pprof listening", logx.String("addr", ln.Addr().String()))
	return nil
}

// Apply reconfigures the listener at runtime.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == cfg {
		return nil
	}
	s.stopLocked(context.Background())
	s.cfg = cfg
	return s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, ln := s.srv, s.ln
	s.srv = nil
	s.ln = nil

	sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.log.Info("pprof stopped")
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == tok {
			h(w, r)
			return
		}
		const bearer = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, bearer) &&
			strings.TrimSpace(strings.TrimPrefix(ah, bearer)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
