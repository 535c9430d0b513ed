package gateway

import "strings"

// DefaultRedirectPath is returned for any redirect candidate that fails
// validation.
const DefaultRedirectPath = "/"

// SanitizeRedirect narrows a client-supplied "return to" value to a safe
// local path. Anything that is not an absolute path rooted at "/", or that
// is protocol-relative ("//host", which browsers resolve against a foreign
// origin), collapses to DefaultRedirectPath. This check is the entire
// open-redirect defense and must run at every point a redirect target is
// computed from client input.
func SanitizeRedirect(candidate string) string {
	if !strings.HasPrefix(candidate, "/") {
		return DefaultRedirectPath
	}
	if strings.HasPrefix(candidate, "//") {
		return DefaultRedirectPath
	}
	return candidate
}
