// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/service"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// Service interfaces for dependency injection and testing

// WalletServiceInterface defines the interface for wallet operations
type WalletServiceInterface interface {
	Register(ctx context.Context, userID string, chainID types.Chain, address string) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error)
	SetStatus(ctx context.Context, userID, walletID string, status types.WalletStatus) error
}

// ApprovalServiceInterface defines the interface for the approvals feed
type ApprovalServiceInterface interface {
	Feed(ctx context.Context, q storage.FeedQuery) ([]*models.ApprovalEvent, error)
}

// AllowlistServiceInterface defines the interface for allowlist operations
type AllowlistServiceInterface interface {
	List(ctx context.Context, userID string, chain *types.Chain) ([]*models.TrustedSpender, error)
	Add(ctx context.Context, userID string, chain types.Chain, spender, label string) error
	Remove(ctx context.Context, userID string, chain types.Chain, spender string) (int64, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	walletService    WalletServiceInterface
	approvalService  ApprovalServiceInterface
	allowlistService AllowlistServiceInterface
	userRepo         *storage.UserRepository
	config           *ServerConfig
	log              *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	walletService *service.WalletService,
	approvalService *service.ApprovalService,
	allowlistService *service.AllowlistService,
	userRepo *storage.UserRepository,
	log *logging.Logger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		walletService:    walletService,
		approvalService:  approvalService,
		allowlistService: allowlistService,
		userRepo:         userRepo,
		config:           config,
		log:              log.Named("api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Middleware order matters
	s.router.Use(LoggingMiddleware(s.log))
	s.router.Use(RecoveryMiddleware(s.log))
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Wallet endpoints
	api.HandleFunc("/wallets", s.handleRegisterWallet).Methods("POST")
	api.HandleFunc("/wallets", s.handleListWallets).Methods("GET")
	api.HandleFunc("/wallets/{id}/status", s.handleSetWalletStatus).Methods("PATCH")

	// Approvals feed
	api.HandleFunc("/approvals", s.handleApprovalsFeed).Methods("GET")

	// Allowlist endpoints
	api.HandleFunc("/allowlist", s.handleListAllowlist).Methods("GET")
	api.HandleFunc("/allowlist", s.handleAddAllowlist).Methods("POST")
	api.HandleFunc("/allowlist/{chain}/{spender}", s.handleRemoveAllowlist).Methods("DELETE")

	// User endpoints
	api.HandleFunc("/users/me", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/me/notifications", s.handleUpdateNotifications).Methods("PATCH")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "approval-sentinel",
	})
}

// requireUser extracts the authenticated user from the X-User-ID header.
// Returns an empty string after writing an error response when absent.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required", nil)
	}
	return userID
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
