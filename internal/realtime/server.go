package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Authenticator turns a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Actor, error)
}

// Authorizer decides whether actor may watch a ticket room.
type Authorizer interface {
	AuthorizeTicketRoom(ctx context.Context, actor domain.Actor, ticketID string) error
}

// Options tunes the gateway.
type Options struct {
	SendBuffer int
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades authenticated requests to websocket clients.
type Handler struct {
	hub      *Hub
	authn    Authenticator
	authz    Authorizer
	upgrader websocket.Upgrader
	buffer   int
	logger   *zap.Logger
}

// NewHandler constructs the websocket endpoint.
func NewHandler(hub *Hub, authn Authenticator, authz Authorizer, opts Options, logger *zap.Logger) *Handler {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:   hub,
		authn: authn,
		authz: authz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		buffer: opts.SendBuffer,
		logger: logger.With(zap.String("component", "realtime_gateway")),
	}
}

// ServeHTTP authenticates via ?token= or a bearer header, then upgrades.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}
	}
	if token == "" {
		http.Error(w, "missing authentication token", http.StatusUnauthorized)
		return
	}

	actor, err := h.authn.Authenticate(r.Context(), token)
	if err != nil {
		h.logger.Info("websocket rejected", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, actor, h.authz, h.buffer, h.logger)
	rooms := []string{UserRoom(actor.ID)}
	if actor.Role == domain.RoleAdmin {
		rooms = append(rooms, AdminRoom)
	}
	h.hub.Register(client, rooms...)
	h.logger.Info("websocket connected",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("user_id", actor.ID),
		zap.String("role", string(actor.Role)))

	go client.writePump()
	go client.readPump()
}

// NewRouter mounts the gateway on a chi router.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	r.Method(http.MethodGet, "/ws", handler)
	return r
}

// Server runs the gateway on its own listener; fiber's fasthttp cannot hijack for websockets.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer binds router to addr.
func NewServer(addr string, router http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("realtime gateway listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
