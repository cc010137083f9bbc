package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rahul4469/seemenu/context"
	"github.com/rahul4469/seemenu/internal/crypto"
)

// SessionMiddleware gives every browser a widget session. It never blocks
// a request: a missing or malformed cookie is replaced by a fresh one.
type SessionMiddleware struct {
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
}

func NewSessionMiddleware(cookieName string, ttl time.Duration, secure bool, logger *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		logger:     logger,
	}
}

// SetSession loads the widget session id from the cookie, issuing a new
// cookie when needed, and stores the id in the request context.
func (m *SessionMiddleware) SetSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			if id, err := crypto.HashToken(cookie.Value); err == nil {
				m.setCookie(w, cookie.Value)
				next.ServeHTTP(w, r.WithContext(context.ContextSetSession(r.Context(), id)))
				return
			}
		}

		token, err := crypto.NewToken()
		if err != nil {
			m.logger.Error("failed to issue widget session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		id, err := crypto.HashToken(token)
		if err != nil {
			m.logger.Error("failed to hash widget session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		m.setCookie(w, token)
		next.ServeHTTP(w, r.WithContext(context.ContextSetSession(r.Context(), id)))
	})
}

// setCookie (re)issues the session cookie, sliding its expiry.
func (m *SessionMiddleware) setCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentSession returns the widget session id for the request, or "".
func CurrentSession(r *http.Request) string {
	return context.ContextGetSession(r.Context())
}

// MustCurrentSession is like CurrentSession but panics if no session is set.
// Only use this in handlers behind SetSession.
func MustCurrentSession(r *http.Request) string {
	id := context.ContextGetSession(r.Context())
	if id == "" {
		panic("MustCurrentSession called without SetSession middleware")
	}
	return id
}
