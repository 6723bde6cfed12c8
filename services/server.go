package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/crispinterview/backend/repository"
	ws "github.com/crispinterview/backend/websocket"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	store              repository.Store
	rawDB              interface{} // Raw GORM DB kept for health checks
	geminiService      *GeminiService
	pipeline           *ScoringPipeline
	coordinator        *SessionCoordinator
	extractor          *ResumeExtractor
	candidateEndpoints *CandidateEndpoints
	interviewEndpoints *InterviewEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetStore sets the persistence backend
func (s *Server) SetStore(store repository.Store, rawDB interface{}) {
	s.store = store
	s.rawDB = rawDB
}

// Coordinator exposes the session coordinator once services are initialized.
func (s *Server) Coordinator() *SessionCoordinator {
	return s.coordinator
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	var generator Generator
	if s.config.AI.GeminiAPIKey != "" {
		if svc := NewGeminiService(s.config.AI.GeminiAPIKey); svc != nil {
			s.geminiService = svc
			generator = svc
			slog.Info("Gemini service initialized")
		}
	}
	if generator == nil {
		slog.Warn("Gemini API key not configured, using local question bank and scoring heuristics")
	}

	s.pipeline = NewScoringPipeline(generator)
	s.extractor = NewResumeExtractor(nil)

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	s.coordinator = NewSessionCoordinator(s.store, s.pipeline, &hubPublisher{hub: s.wsHub}, NewRealClock())
	s.candidateEndpoints = NewCandidateEndpoints(s.store, s.coordinator, s.extractor)
	s.interviewEndpoints = NewInterviewEndpoints(s.store, s.coordinator)

	return nil
}

// hubPublisher fans session events out over the WebSocket hub.
type hubPublisher struct {
	hub *ws.Hub
}

func (p *hubPublisher) PublishEvent(event SessionEvent) {
	p.hub.Broadcast(event)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.HTTP.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		r.Get("/ws", s.websocketHandlerFunc)

		s.candidateEndpoints.RegisterRoutes(r)
		s.interviewEndpoints.RegisterRoutes(r)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if gormDB, ok := s.rawDB.(*gorm.DB); ok {
			if sqlDB, err := gormDB.DB(); err == nil {
				if err := sqlDB.Ping(); err != nil {
					dbStatus = "down"
					status = "degraded"
				} else {
					dbStatus = "up"
				}
			} else {
				dbStatus = "down"
				status = "degraded"
			}
		}
	}

	wsClients := 0
	if s.wsHub != nil {
		wsClients = s.wsHub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `","ws_clients":` + strconv.Itoa(wsClients) + `}`))

	slog.Info("Health check", "status", status, "database", dbStatus, "ws_clients", wsClients)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := s.wsHub.RegisterClient(conn)
	slog.Info("WebSocket connection established", "client_id", client.ClientID)

	go client.ReadPump()
	go client.WritePump()
}
