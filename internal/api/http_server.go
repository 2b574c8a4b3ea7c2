package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentacar/internal/auth"
	"rentacar/internal/config"
	"rentacar/internal/metrics"
	"rentacar/internal/models"
	"rentacar/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the collaborators behind the HTTP API.
type Services struct {
	Registry *service.Registry
	Cars     *service.CarService
	Admin    *service.AdminService
	Users    *service.UserService
	Store    Pinger
	// Uploads serves locally stored images under /uploads/ when set.
	Uploads http.Handler
}

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	tokens  *auth.Tokens
	limiter *rateLimiter
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		tokens:  auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		limiter: newRateLimiter(cfg.RateLimit),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(srv.recoverMiddleware(srv.rateLimitMiddleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.svc.Uploads != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", s.svc.Uploads))
	}

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", s.authed(s.handleLogout))
	mux.HandleFunc("GET /api/v1/me", s.authed(s.handleMe))
	mux.HandleFunc("PATCH /api/v1/me", s.authed(s.handleUpdateMe))

	mux.HandleFunc("GET /api/v1/cars", s.handleCars)
	mux.HandleFunc("GET /api/v1/cars/featured", s.handleFeatured)
	mux.HandleFunc("GET /api/v1/cars/{id}", s.handleCar)
	mux.HandleFunc("GET /api/v1/cars/{id}/quote", s.handleQuote)

	mux.HandleFunc("GET /api/v1/bookings", s.authed(s.handleMyBookings))
	mux.HandleFunc("POST /api/v1/bookings", s.authed(s.handleCreateBooking))
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", s.authed(s.handleCancelBooking))

	mux.HandleFunc("GET /api/v1/favorites", s.authed(s.handleFavorites))
	mux.HandleFunc("POST /api/v1/favorites/{carID}/toggle", s.authed(s.handleToggleFavorite))

	mux.HandleFunc("GET /api/v1/locations", s.handleLocations)
	mux.HandleFunc("GET /api/v1/settings", s.handleSettings)

	mux.HandleFunc("GET /api/v1/admin/bookings", s.authed(s.handleAdminBookings))
	mux.HandleFunc("GET /api/v1/admin/bookings/export", s.authed(s.handleExportBookings))
	mux.HandleFunc("PATCH /api/v1/admin/bookings/{id}/status", s.authed(s.handleBookingStatus))
	mux.HandleFunc("PATCH /api/v1/admin/bookings/{id}/payment", s.authed(s.handleBookingPayment))
	mux.HandleFunc("DELETE /api/v1/admin/bookings/{id}", s.authed(s.handleDeleteBooking))
	mux.HandleFunc("GET /api/v1/admin/stats", s.authed(s.handleStats))

	mux.HandleFunc("POST /api/v1/admin/cars", s.authed(s.handleCreateCar))
	mux.HandleFunc("PUT /api/v1/admin/cars/{id}", s.authed(s.handleUpdateCar))
	mux.HandleFunc("DELETE /api/v1/admin/cars/{id}", s.authed(s.handleDeleteCar))
	mux.HandleFunc("POST /api/v1/admin/cars/{id}/images", s.authed(s.handleUploadImage))

	mux.HandleFunc("GET /api/v1/admin/users", s.authed(s.handleUsers))
	mux.HandleFunc("GET /api/v1/admin/users/{id}", s.authed(s.handleUser))
	mux.HandleFunc("PATCH /api/v1/admin/users/{id}", s.authed(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/v1/admin/users/{id}", s.authed(s.handleDeleteUser))

	mux.HandleFunc("POST /api/v1/admin/locations", s.authed(s.handleCreateLocation))
	mux.HandleFunc("PUT /api/v1/admin/locations/{id}", s.authed(s.handleUpdateLocation))
	mux.HandleFunc("DELETE /api/v1/admin/locations/{id}", s.authed(s.handleDeleteLocation))
	mux.HandleFunc("PUT /api/v1/admin/settings", s.authed(s.handleUpdateSettings))
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type userKey struct{}

// authed resolves the bearer token to its client context and re-checks the
// identity against the user store. Handlers read it with requestUser.
func (s *HTTPServer) authed(next func(http.ResponseWriter, *http.Request, *service.Client)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c, err := s.svc.Registry.Get(r.Context(), claims.SessionID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		user, err := c.Session.Verify(r.Context())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		if uid, _ := claims.UserID(); user.ID != uid {
			writeError(w, http.StatusUnauthorized, "session no longer valid")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)), c)
	}
}

// requestUser is the identity authed verified for r.
func requestUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userKey{}).(*models.User)
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
