// Package httpapi exposes the public HTTP surface of the server: JSON
// handlers, bearer authentication middleware, and the route table.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/auth"
	"github.com/webstack/webstack/internal/server/config"
	"github.com/webstack/webstack/internal/server/models"
	"github.com/webstack/webstack/internal/server/ratelimit"
	"github.com/webstack/webstack/internal/server/services"
)

// Server bundles the services behind the HTTP handlers.
type Server struct {
	users         *services.UserService
	apiKeys       *services.APIKeyService
	files         *services.FileService
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	logger        logging.Logger
	cfg           *config.Config
}

// NewServer constructs the HTTP handler set.
func NewServer(users *services.UserService, apiKeys *services.APIKeyService, files *services.FileService,
	authenticator *auth.Authenticator, limiter *ratelimit.Limiter, logger logging.Logger, cfg *config.Config) *Server {
	return &Server{
		users:         users,
		apiKeys:       apiKeys,
		files:         files,
		authenticator: authenticator,
		limiter:       limiter,
		logger:        logger,
		cfg:           cfg,
	}
}

// Router builds the route table. Global middleware order: security headers
// wrap everything, the access log sees rate-limited responses, the limiter
// runs last before routing.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(securityHeaders, s.logRequests, s.rateLimit)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Public auth endpoints.
	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	// Authenticated account endpoints.
	account := r.PathPrefix("/api/auth").Subrouter()
	account.Use(s.authenticate)
	account.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	account.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	account.HandleFunc("/me", s.handleUpdateMe).Methods(http.MethodPatch)
	account.HandleFunc("/change-password", s.handleChangePassword).Methods(http.MethodPost)
	account.HandleFunc("/api-keys", s.handleCreateAPIKey).Methods(http.MethodPost)
	account.HandleFunc("/api-keys", s.handleListAPIKeys).Methods(http.MethodGet)
	account.HandleFunc("/api-keys/{id:[0-9]+}", s.handleDeleteAPIKey).Methods(http.MethodDelete)

	// Admin user management.
	admin := r.PathPrefix("/api/users").Subrouter()
	admin.Use(s.authenticate, func(next http.Handler) http.Handler {
		return s.requireRole(models.RoleAdmin, next)
	})
	admin.HandleFunc("", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet)
	admin.HandleFunc("/{id:[0-9]+}", s.handleUpdateUser).Methods(http.MethodPatch)
	admin.HandleFunc("/{id:[0-9]+}/activate", s.handleActivateUser).Methods(http.MethodPatch)
	admin.HandleFunc("/{id:[0-9]+}/deactivate", s.handleDeactivateUser).Methods(http.MethodPatch)
	admin.HandleFunc("/{id:[0-9]+}", s.handleDeleteUser).Methods(http.MethodDelete)

	// File uploads.
	filesRouter := r.PathPrefix("/api/files").Subrouter()
	filesRouter.Use(s.authenticate)
	filesRouter.HandleFunc("/upload-url", s.handleUploadURL).Methods(http.MethodPost)
	filesRouter.HandleFunc("/{id:[0-9]+}/complete", s.handleCompleteUpload).Methods(http.MethodPost)
	filesRouter.HandleFunc("/{id:[0-9]+}/download-url", s.handleDownloadURL).Methods(http.MethodGet)
	filesRouter.HandleFunc("", s.handleListFiles).Methods(http.MethodGet)
	filesRouter.HandleFunc("/{id:[0-9]+}", s.handleDeleteFile).Methods(http.MethodDelete)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
