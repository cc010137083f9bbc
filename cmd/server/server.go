package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/rahul4469/seemenu/internal/config"
	"github.com/rahul4469/seemenu/internal/controllers"
	"github.com/rahul4469/seemenu/internal/crypto"
	"github.com/rahul4469/seemenu/internal/metrics"
	"github.com/rahul4469/seemenu/internal/middleware"
	"github.com/rahul4469/seemenu/internal/views"
	"github.com/rahul4469/seemenu/internal/widget"
)

// app carries everything the router needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	widget  *widget.Widget
	backend controllers.HealthChecker
	checks  map[string]controllers.HealthChecker // database and redis, when configured
	history controllers.HistoryLister            // nil when DATABASE_URL is unset
	metrics *metrics.Metrics
}

func newRouter(a *app) (http.Handler, error) {
	csrfKey, err := crypto.DeriveKey([]byte(a.cfg.Security.CSRFKey), "csrf")
	if err != nil {
		return nil, fmt.Errorf("failed to derive CSRF key: %w", err)
	}

	homeTpl, err := views.ParseFS("pages/home.gohtml")
	if err != nil {
		return nil, err
	}

	// CSRF middleware
	csrfMw := csrf.Protect(csrfKey,
		csrf.Secure(a.cfg.Security.CSRFSecure),
		csrf.Path("/"),
		csrf.TrustedOrigins(a.cfg.Security.TrustedOrigins),
	)
	sessionMw := middleware.NewSessionMiddleware(
		a.cfg.Security.SessionCookieName,
		a.cfg.Security.SessionTTL,
		a.cfg.Security.CSRFSecure,
		a.logger,
	)

	// Setup Controllers ---------------
	menuCtrl := controllers.NewMenuController(
		a.widget,
		controllers.MenuTemplates{Home: homeTpl},
		a.cfg.Server.MaxUploadBytes,
		a.logger,
	)
	historyCtrl := controllers.NewHistoryController(a.history, a.logger)
	backendCtrl := controllers.NewBackendController(a.backend, 0, a.logger)
	healthCtrl := controllers.NewHealthController(a.checks, 0, a.logger)

	// Setup router and routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(a.metrics.Middleware)

	// ---- Monitoring ----
	r.Get("/healthz", healthCtrl.GetHealth)
	r.Get("/healthz/backend", backendCtrl.GetHealth)
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/history", historyCtrl.GetHistory)
	r.Get("/history/{id}", historyCtrl.GetUpload)

	// ---- Widget ----
	r.Group(func(r chi.Router) {
		if !a.cfg.Security.CSRFSecure {
			r.Use(plaintextHTTP)
		}
		r.Use(csrfMw)
		r.Use(sessionMw.SetSession)

		r.Get("/", menuCtrl.GetHome)
		r.Post("/menu/select", menuCtrl.PostSelect)
		r.Post("/menu/upload", menuCtrl.PostUpload)
	})

	return r, nil
}

// plaintextHTTP lets gorilla/csrf skip its TLS-only referer check when the
// app is served over plain HTTP in development.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
