package server

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ownerHeader carries the end-user identity forwarded by the frontend. It
// scopes the one-deployment-per-project rule.
const ownerHeader = "X-Shipd-Owner"

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// authMiddleware requires the configured Bearer token. An empty token
// disables the check (dev mode).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		if !tokenEqual(token, s.cfg.Auth.Token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// streamAuthMiddleware accepts either the main Bearer token (via header) or
// the read-only stream token (via ?token= query param). Browser WebSocket APIs
// cannot set custom headers, so the query param is the primary auth mechanism
// for streaming clients.
func (s *Server) streamAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if header := r.Header.Get("Authorization"); header != "" {
			token := strings.TrimPrefix(header, "Bearer ")
			if token != header && tokenEqual(token, s.cfg.Auth.Token) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if qToken := r.URL.Query().Get("token"); qToken != "" {
			if tokenEqual(qToken, s.cfg.Auth.Token) {
				next.ServeHTTP(w, r)
				return
			}
			if s.cfg.Auth.StreamToken != "" && tokenEqual(qToken, s.cfg.Auth.StreamToken) {
				next.ServeHTTP(w, r)
				return
			}
		}

		writeError(w, http.StatusUnauthorized, "invalid or missing token")
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		zap.S().Infow("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Errorf("http: panic serving %s %s: %v", r.Method, r.URL.Path, err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack forwards to the underlying ResponseWriter so WebSocket upgrades work.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
}
