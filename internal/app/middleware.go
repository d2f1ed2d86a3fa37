package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"golang.org/x/crypto/bcrypt"

	"github.com/pawnbook/pawnbook/internal/platform/httpx"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the Pawnbook middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		secureMiddleware.Handler,
		httprate.LimitByIP(120, time.Minute),
		actorMiddleware(cfg),
	}
}

// actorMiddleware verifies the back-office API token and places the actor id
// in the request context. Health checks pass through unauthenticated.
func actorMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get("X-Api-Token")
			if token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "", "Unauthorized", "missing api token")
				return
			}
			hash := ""
			if cfg.Config != nil {
				hash = cfg.Config.APITokenHash
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("api token rejected", slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusUnauthorized, "", "Unauthorized", "invalid api token")
				return
			}
			actorID, err := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
			if err != nil || actorID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "", "Bad Request", "X-Actor-Id header required")
				return
			}
			ctx := shared.ContextWithActor(r.Context(), actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
