package http

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/infra/ratelimit"
	"github.com/opsdeck/opsdeck/internal/tenant"
	"github.com/opsdeck/opsdeck/pkg/apperror"
	"github.com/rs/cors"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"

	// Development-only identity headers, honoured when AuthConfig.AllowDevHeaders is set
	DevUserIDHeader    = "X-User-Id"
	DevUserEmailHeader = "X-User-Email"
	DevUserNameHeader  = "X-User-Name"
)

// TokenVerifier turns a bearer token into the principal it was issued to
type TokenVerifier interface {
	ValidateAccessToken(token string) (tenant.Principal, error)
}

// CorrelationIDMiddleware ensures every request/response carries a correlation ID
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = generateCorrelationID()
		}
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), cid)))
	})
}

func generateCorrelationID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// statusWriter records the response status. It passes Flush and Hijack through so streaming
// and websocket handlers keep working behind it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			log.Info(r.Context(), "HTTP request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      sw.status,
				"duration_ms": duration.Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})
		})
	}
}

func recoveryMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"path": r.URL.Path,
					})
					response.InternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// withCORS adds CORS support in front of the whole API
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{CorrelationIDHeader},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}

// AuthConfig configures AuthMiddleware
type AuthConfig struct {
	// AllowDevHeaders trusts X-User-* headers when no bearer token is sent
	AllowDevHeaders bool
}

// AuthMiddleware resolves the acting principal from the bearer token
type AuthMiddleware struct {
	tokens TokenVerifier
	config AuthConfig
}

func NewAuthMiddleware(tokens TokenVerifier, config AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, config: config}
}

// RequireAuth rejects requests without a valid principal. Browsers cannot set headers on
// EventSource or WebSocket requests, so the token may also arrive as the access_token query parameter.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}
			token = parts[1]
		}

		var principal tenant.Principal
		switch {
		case token != "" && m.tokens != nil:
			p, err := m.tokens.ValidateAccessToken(token)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}
			principal = p
		case m.config.AllowDevHeaders && r.Header.Get(DevUserIDHeader) != "":
			principal = tenant.Principal{
				UserID:      r.Header.Get(DevUserIDHeader),
				Email:       r.Header.Get(DevUserEmailHeader),
				DisplayName: r.Header.Get(DevUserNameHeader),
			}
		default:
			response.Unauthorized(w, "Authorization header required")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithPrincipal(r.Context(), principal)))
	})
}

// tenantMiddleware scopes the request to the organization named in the route
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := mux.Vars(r)["orgId"]
		if orgID == "" {
			response.AppError(w, apperror.NewBadRequest("organization id is required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithOrg(r.Context(), orgID)))
	})
}

// rateLimitMiddleware limits each principal independently. Limiter failures let the request through.
func rateLimitMiddleware(limiter ratelimit.Limiter, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if p, ok := tenant.PrincipalFromContext(r.Context()); ok {
				key = p.UserID
			}
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn(r.Context(), "Rate limiter unavailable", map[string]interface{}{"error": err.Error()})
				allowed = true
			}
			if !allowed {
				response.AppError(w, apperror.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
