package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/code-sleuth/ike-wp/internal/manager/importers"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/internal/manager/rag"
	"github.com/code-sleuth/ike-wp/internal/manager/services"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	msgUnauthorized   = "Wrong or no authentication key present."
	msgMissingSiteURL = "'site_url' is not present in the request body."
	msgInvalidSiteURL = "'site_url' is not an url."
	msgInvalidBody    = "Request body is not valid JSON."
	msgInternalError  = "Internal server error."

	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// DatabaseService manages per-site vector databases.
type DatabaseService interface {
	EnsureDatabase(ctx context.Context, siteURL string, createIfNotPresent bool) (*services.DatabaseStatus, error)
	DeleteDatabase(ctx context.Context, siteURL string) (string, error)
}

// ChatService answers conversations against a site's namespace.
type ChatService interface {
	Generate(
		ctx context.Context,
		namespace string,
		history []models.ChatMessage,
		temperature *float32,
	) ([]models.ChatMessage, error)
}

// Server exposes database management and chat over HTTP.
type Server struct {
	databases DatabaseService
	chat      ChatService
	authKey   string
	locks     *hostLocks
	logger    zerolog.Logger
}

type dbRequest struct {
	SiteURL            *string `json:"site_url"`
	CreateIfNotPresent bool    `json:"create_if_not_present"`
}

type chatRequest struct {
	SiteURL     *string              `json:"site_url"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature *float32             `json:"temperature"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// New creates a server. An empty authKey rejects every authenticated request.
func New(databases DatabaseService, chat ChatService, authKey string, logger zerolog.Logger) *Server {
	return &Server{
		databases: databases,
		chat:      chat,
		authKey:   authKey,
		locks:     newHostLocks(),
		logger:    logger,
	}
}

// Handler returns the routed handler with request ids and authentication applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /db", s.authenticate(http.HandlerFunc(s.handleEnsureDatabase)))
	mux.Handle("DELETE /db", s.authenticate(http.HandlerFunc(s.handleDeleteDatabase)))
	mux.Handle("POST /chat", s.authenticate(http.HandlerFunc(s.handleChat)))
	return s.withRequestID(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnsureDatabase(w http.ResponseWriter, r *http.Request) {
	var req dbRequest
	if !s.decode(w, r, &req) {
		return
	}
	host, ok := s.siteHost(w, req.SiteURL)
	if !ok {
		return
	}

	unlock := s.locks.lock(host)
	defer unlock()

	status, err := s.databases.EnsureDatabase(r.Context(), *req.SiteURL, req.CreateIfNotPresent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	var req dbRequest
	if !s.decode(w, r, &req) {
		return
	}
	host, ok := s.siteHost(w, req.SiteURL)
	if !ok {
		return
	}

	unlock := s.locks.lock(host)
	defer unlock()

	message, err := s.databases.DeleteDatabase(r.Context(), *req.SiteURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	host, ok := s.siteHost(w, req.SiteURL)
	if !ok {
		return
	}

	messages, err := s.chat.Generate(r.Context(), host, req.Messages, req.Temperature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
		return false
	}
	return true
}

func (s *Server) siteHost(w http.ResponseWriter, siteURL *string) (string, bool) {
	if siteURL == nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgMissingSiteURL})
		return "", false
	}

	host, err := services.SiteNamespace(*siteURL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgInvalidSiteURL})
		return "", false
	}
	return host, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger.With().Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Logger()

	switch {
	case errors.Is(err, rag.ErrEmptyConversation),
		errors.Is(err, rag.ErrLastMessageNotUser),
		errors.Is(err, rag.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidSiteURL):
		logger.Warn().Err(err).Msg("Rejected request")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
	case errors.Is(err, services.ErrUnsupportedSite), errors.Is(err, importers.ErrDiscovery):
		logger.Warn().Err(err).Msg("Site cannot be ingested")
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: err.Error()})
	default:
		logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msgInternalError})
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || s.authKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.authKey)) != 1 {
			s.logger.Warn().Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("Unauthorized request")
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// hostLocks serialises work on the same host. An entry lives only while
// some request holds or waits for it.
type hostLocks struct {
	mu    sync.Mutex
	locks map[string]*hostLock
}

type hostLock struct {
	sync.Mutex
	refs int
}

func newHostLocks() *hostLocks {
	return &hostLocks{locks: make(map[string]*hostLock)}
}

func (h *hostLocks) lock(host string) func() {
	h.mu.Lock()
	l, ok := h.locks[host]
	if !ok {
		l = &hostLock{}
		h.locks[host] = l
	}
	l.refs++
	h.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, host)
		}
		h.mu.Unlock()
	}
}

func (h *hostLocks) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.locks)
}
