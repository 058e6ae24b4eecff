package receipt

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// defaultUserID owns the ledger when basic auth is not configured
const defaultUserID = "local"

// Server handles HTTP requests for receipts and the ledger
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials. The username doubles as
// the ledger's user ID.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) enabled() bool {
	return a.Username != "" || a.Password != ""
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// userID returns the authenticated user, or "" when credentials are wrong
func (s *Server) userID(r *http.Request) string {
	if !s.basicAuth.enabled() {
		return defaultUserID
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	if !userMatch || !passMatch {
		return ""
	}
	return user
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userHandlerFunc is a handler that acts for an authenticated user
type userHandlerFunc func(w http.ResponseWriter, r *http.Request, userID string)

// requireAuth resolves the user and rejects the request if there is none
func (s *Server) requireAuth(next userHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := s.userID(r)
		if userID == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="BudgetByte"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, userID)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("PATCH /api/receipts/{id}/items/{index}", s.requireAuth(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/receipts/{id}/items/{index}", s.requireAuth(s.handleDeleteItem))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleUploadReceipt))

	s.mux.HandleFunc("GET /api/ledger/{year}/{month}", s.requireAuth(s.handleGetMonth))
	s.mux.HandleFunc("GET /api/ledger/{year}", s.requireAuth(s.handleGetYear))
	s.mux.HandleFunc("GET /api/ledger", s.requireAuth(s.handleGetLedger))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsMiddleware(s.mux).ServeHTTP(w, r)
}
