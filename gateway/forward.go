package gateway

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// verifyPath is the forward-auth endpoint the reverse proxy calls before
// serving each protected request.
const verifyPath = "/authz/verify"

// handleVerify decides whether the original request described by the
// proxy's forwarded headers may proceed. The checks run in fixed order:
// API token first, then session cookie, then deny. The handler is
// read-only: it never creates, extends, or destroys a session, so the
// proxy can safely retry it and probes cannot mutate state.
//
// Allowed requests get 200 with the resolved identity in the configured
// identity response header. Denied requests get a 302 to the login form
// with the original URI carried in next, which the proxy relays to the
// browser.
func (g *Gateway) handleVerify(w http.ResponseWriter, r *http.Request) {
	forwardedURI := r.Header.Get(g.cfg.Proxy.ForwardedURIHeader)

	// Without a forwarded URI (proxy misconfigured, or a direct call) the
	// best available description of the original request is this request's
	// own URI. Both the token scope check and the deny redirect use it.
	target := forwardedURI
	if target == "" {
		target = r.URL.RequestURI()
	}

	if token := r.Header.Get(g.cfg.Tokens.Header); token != "" {
		if g.tokens.Authenticate(token, forwardedPath(target)) {
			forwardAuthDecisions.WithLabelValues(outcomeAllowToken).Inc()
			g.audit.logIdentity(AuditForwardAuthAllow, r, TokenIdentity,
				slog.String("uri", forwardedURI))
			w.Header().Set(g.cfg.Proxy.IdentityHeader, TokenIdentity)
			w.WriteHeader(http.StatusOK)
			return
		}
		// An invalid or out-of-scope token falls through to the session
		// check rather than failing hard; a browser behind the proxy may
		// legitimately carry both.
	}

	if identity, ok := g.sessionIdentity(r); ok {
		forwardAuthDecisions.WithLabelValues(outcomeAllowSession).Inc()
		g.audit.logIdentity(AuditForwardAuthAllow, r, identity,
			slog.String("uri", forwardedURI))
		w.Header().Set(g.cfg.Proxy.IdentityHeader, identity)
		w.WriteHeader(http.StatusOK)
		return
	}

	// If the denied target is the verify endpoint itself, a next pointing
	// back at it would bounce the browser between login and verify forever.
	if isVerifyURI(target) {
		target = DefaultRedirectPath
	}
	next := SanitizeRedirect(target)

	forwardAuthDecisions.WithLabelValues(outcomeDeny).Inc()
	g.audit.logFailure(AuditForwardAuthDeny, r, "no valid credential",
		slog.String("uri", forwardedURI),
		slog.String("method", r.Header.Get(g.cfg.Proxy.ForwardedMethodHeader)))
	http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusFound)
}

// forwardedPath strips any query string from a forwarded URI so token
// path-prefix checks see only the path.
func forwardedPath(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// isVerifyURI reports whether a redirect target points at the verify
// endpoint itself.
func isVerifyURI(target string) bool {
	path := forwardedPath(target)
	return path == verifyPath || strings.HasPrefix(path, verifyPath+"/")
}
