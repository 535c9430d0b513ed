package gateway

import (
	"log/slog"
	"net/http"
	"time"
)

// invalidCredentialsMsg is the single message shown for any credential
// failure. One message for wrong username and wrong password alike, so the
// response body cannot be used to probe which usernames exist.
const invalidCredentialsMsg = "Invalid username or password"

// loginPage is the template data for the login form.
type loginPage struct {
	Error    string
	Username string
	Next     string
}

func (g *Gateway) renderLogin(w http.ResponseWriter, status int, page loginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := g.templates.ExecuteTemplate(w, "login.html", page); err != nil {
		g.log.Error("rendering login template", "error", err)
	}
}

// handleLoginForm serves the login form. A visitor who already holds a
// valid session skips the form and goes straight to their destination.
func (g *Gateway) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := SanitizeRedirect(r.URL.Query().Get("next"))
	if _, ok := g.sessionIdentity(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	g.renderLogin(w, http.StatusOK, loginPage{Next: next})
}

// handleLoginSubmit processes a credential submission. Missing fields are
// 400, bad credentials are 401 with a deliberately generic message, an
// internal verification fault is 500, and success is 303 to the sanitized
// next target with a fresh session cookie.
func (g *Gateway) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.renderLogin(w, http.StatusBadRequest, loginPage{Error: "Malformed form submission"})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	next := SanitizeRedirect(r.PostFormValue("next"))

	if username == "" || password == "" {
		loginAttempts.WithLabelValues("bad_request").Inc()
		g.renderLogin(w, http.StatusBadRequest, loginPage{
			Error:    "Username and password are required",
			Username: username,
			Next:     next,
		})
		return
	}

	ok, err := g.verifier.Verify(username, password)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		g.audit.logFailure(AuditLoginError, r, "verifier fault")
		g.log.Error("credential verification failed", "error", err)
		g.renderLogin(w, http.StatusInternalServerError, loginPage{
			Error: "Authentication is temporarily unavailable",
			Next:  next,
		})
		return
	}
	if !ok {
		loginAttempts.WithLabelValues("failure").Inc()
		g.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		g.renderLogin(w, http.StatusUnauthorized, loginPage{
			Error:    invalidCredentialsMsg,
			Username: username,
			Next:     next,
		})
		return
	}

	token, err := g.sessions.Create(g.verifier.Username())
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		g.log.Error("creating session", "error", err)
		g.renderLogin(w, http.StatusInternalServerError, loginPage{
			Error: "Authentication is temporarily unavailable",
			Next:  next,
		})
		return
	}

	value, err := g.cookies.encode(token)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		g.sessions.Destroy(token)
		g.log.Error("signing session cookie", "error", err)
		g.renderLogin(w, http.StatusInternalServerError, loginPage{
			Error: "Authentication is temporarily unavailable",
			Next:  next,
		})
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	g.audit.logIdentity(AuditLoginSuccess, r, g.verifier.Username())
	// The store is authoritative for expiry; the cookie's Expires only
	// tells the browser when to stop sending it.
	g.cookies.writeSessionCookie(w, value, time.Now().Add(g.cfg.Session.Lifetime), g.cookieSecure(r))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// handleLogout destroys the current session, if any, and always lands on
// the login form. Logging out without a session is not an error.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(g.cfg.Session.CookieName); err == nil {
		if token, ok := g.cookies.decode(cookie.Value); ok {
			if identity, live := g.sessions.Lookup(token); live {
				g.audit.logIdentity(AuditLogout, r, identity)
			}
			g.sessions.Destroy(token)
		}
	}
	g.cookies.clearSessionCookie(w, g.cookieSecure(r))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleLanding serves the signed-in landing page. RequireSession has
// already resolved the identity into the request headers.
func (g *Gateway) handleLanding(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get(g.cfg.Proxy.IdentityHeader)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := g.templates.ExecuteTemplate(w, "landing.html", struct{ Identity string }{identity}); err != nil {
		g.log.Error("rendering landing template", "error", err,
			slog.String("identity", identity))
	}
}
