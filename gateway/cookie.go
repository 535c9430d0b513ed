package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

// cookieCodec signs and verifies session cookie values. The cookie carries
// "<token>.<mac>" where mac = HMAC-SHA256(name + "=" + token) keyed by the
// configured session secret; a cookie with a bad MAC never reaches the
// session store. The secret sits in a memguard Enclave (encrypted at rest
// in memory) and is decrypted only for the duration of each operation.
type cookieCodec struct {
	name   string
	secret *memguard.Enclave
}

func newCookieCodec(name, secret string) *cookieCodec {
	// NewEnclave wipes the source slice.
	return &cookieCodec{
		name:   name,
		secret: memguard.NewEnclave([]byte(secret)),
	}
}

func (c *cookieCodec) encode(token string) (string, error) {
	mac, err := c.sign(token)
	if err != nil {
		return "", err
	}
	return token + "." + mac, nil
}

func (c *cookieCodec) decode(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	token, gotMAC := value[:i], value[i+1:]
	wantMAC, err := c.sign(token)
	if err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(gotMAC), []byte(wantMAC)) {
		return "", false
	}
	return token, true
}

func (c *cookieCodec) sign(token string) (string, error) {
	key, err := c.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening session secret: %w", err)
	}
	defer key.Destroy()

	h := hmac.New(sha256.New, key.Bytes())
	h.Write([]byte(c.name + "=" + token))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// writeSessionCookie sets the session cookie: HttpOnly, SameSite=Lax, and
// Secure whenever the deployment is TLS-facing. Expiry is absolute.
func (c *cookieCodec) writeSessionCookie(w http.ResponseWriter, value string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

// clearSessionCookie removes the session cookie.
func (c *cookieCodec) clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
