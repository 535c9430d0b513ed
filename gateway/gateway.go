// Package gateway implements the authentication gateway: interactive login
// backed by bcrypt credentials, signed session cookies, static API tokens,
// and the forward-auth verification endpoint a reverse proxy consults
// before serving each protected request.
package gateway

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcleod/gatehouse/config"
	"github.com/jmcleod/gatehouse/web"
)

// Gateway holds the dependencies needed by the HTTP handlers.
type Gateway struct {
	cfg       *config.Config
	verifier  *CredentialVerifier
	sessions  SessionStore
	tokens    *TokenAuthenticator
	cookies   *cookieCodec
	audit     *auditLogger
	log       *slog.Logger
	templates *template.Template
	static    http.Handler
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.log = logger
	}
}

// WithSessionStore overrides the session backend. The default is an
// in-memory store with the configured lifetime.
func WithSessionStore(store SessionStore) Option {
	return func(g *Gateway) {
		g.sessions = store
	}
}

// New creates a Gateway from validated configuration.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if g.sessions == nil {
		g.sessions = NewMemorySessionStore(cfg.Session.Lifetime)
	}

	verifier, err := NewCredentialVerifier(cfg.Auth.Username, cfg.Auth.PasswordHash, cfg.Auth.Password, g.log)
	if err != nil {
		return nil, err
	}
	g.verifier = verifier

	g.tokens = NewTokenAuthenticator(cfg.Tokens.Values, cfg.Tokens.PathPrefixes)
	g.cookies = newCookieCodec(cfg.Session.CookieName, cfg.Session.Secret)
	g.audit = newAuditLogger(g.log)

	templates, err := web.Templates()
	if err != nil {
		return nil, err
	}
	g.templates = templates

	static, err := web.StaticHandler()
	if err != nil {
		return nil, err
	}
	g.static = static

	return g, nil
}

// Router returns a chi.Router with all gateway routes mounted.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/healthz", g.handleHealth)
	r.Get("/authz/verify", g.handleVerify)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/login", g.handleLoginForm)
	r.Post("/login", g.handleLoginSubmit)
	r.Post("/logout", g.handleLogout)

	r.Handle("/static/*", g.static)
	r.With(g.RequireSession).Get("/", g.handleLanding)

	return r
}

// handleHealth answers liveness probes. It requires no authentication and
// touches no backend state.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionIdentity resolves the request's session cookie to an identity.
// A missing cookie, a bad MAC, and an expired or unknown session all come
// back as a plain miss.
func (g *Gateway) sessionIdentity(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(g.cfg.Session.CookieName)
	if err != nil {
		return "", false
	}
	token, ok := g.cookies.decode(cookie.Value)
	if !ok {
		return "", false
	}
	return g.sessions.Lookup(token)
}

// cookieSecure reports whether the Secure attribute should be set on
// cookies written in response to r. Production always sets it; elsewhere it
// follows whether the request itself arrived over TLS.
func (g *Gateway) cookieSecure(r *http.Request) bool {
	return g.cfg.IsProduction() || requestIsSecure(r)
}

// RequireSession is middleware for the gateway's own browser pages. An
// unauthenticated request is bounced to the login form with the original
// path preserved in the next parameter.
func (g *Gateway) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := g.sessionIdentity(r)
		if !ok {
			http.Redirect(w, r, loginRedirectTarget(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		r.Header.Set(g.cfg.Proxy.IdentityHeader, identity)
		next.ServeHTTP(w, r)
	})
}

// loginRedirectTarget builds the /login URL that returns the user to
// original after they authenticate.
func loginRedirectTarget(original string) string {
	return fmt.Sprintf("/login?next=%s", url.QueryEscape(SanitizeRedirect(original)))
}
