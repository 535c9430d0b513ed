package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// bcryptCost is used when deriving a hash from a bootstrap plaintext
// password at startup.
const bcryptCost = 12

// dummyBcryptHash is compared against when the username does not match, so
// a rejected username costs roughly the same as a rejected password. It is
// a syntactically valid cost-12 hash; a compare against it never grants
// access regardless of outcome.
const dummyBcryptHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// ErrVerifierFault reports an internal failure while comparing credentials
// (for example a corrupt stored hash). It is distinct from a plain mismatch
// so callers can answer 500 instead of 401.
var ErrVerifierFault = errors.New("credential verification fault")

// CredentialVerifier validates the single configured username/password
// pair. The stored hash is written once during construction and read-only
// afterwards.
type CredentialVerifier struct {
	username string
	hash     []byte
}

// NewCredentialVerifier builds a verifier from configuration. When only a
// plaintext bootstrap password is supplied, the bcrypt hash is derived here
// and the plaintext wiped; the hash lives in memory only. With neither hash
// nor plaintext configured the verifier still constructs (every Verify
// call fails) so the process can come up and expose its health endpoint
// while the operator fixes the configuration.
func NewCredentialVerifier(username, passwordHash, bootstrapPassword string, log *slog.Logger) (*CredentialVerifier, error) {
	v := &CredentialVerifier{username: username}

	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("configured password hash is not a valid bcrypt hash: %w", err)
		}
		v.hash = []byte(passwordHash)
	case bootstrapPassword != "":
		plain := []byte(norm.NFKD.String(bootstrapPassword))
		hash, err := bcrypt.GenerateFromPassword(plain, bcryptCost)
		memguard.WipeBytes(plain)
		if err != nil {
			return nil, fmt.Errorf("deriving password hash from bootstrap password: %w", err)
		}
		v.hash = hash
		log.Info("derived password hash from bootstrap plaintext; configure auth.password_hash to avoid keeping the plaintext in the environment")
	default:
		log.Warn("no password hash configured; every interactive login will fail until auth.password_hash or auth.password is set")
	}

	if username == "" && v.hash != nil {
		return nil, errors.New("auth.username is required when a password is configured")
	}
	return v, nil
}

// Configured reports whether a password hash is available.
func (v *CredentialVerifier) Configured() bool {
	return v.hash != nil
}

// Username returns the configured interactive username.
func (v *CredentialVerifier) Username() string {
	return v.username
}

// Verify checks the supplied credentials. Submitted values are NFKD
// normalized before comparison so the same password typed on different
// platforms compares equal. A username mismatch still runs a bcrypt compare
// against a dummy hash to keep the timing profile in line with a password
// mismatch. The returned error is non-nil only for internal faults
// (ErrVerifierFault); a plain mismatch is (false, nil).
func (v *CredentialVerifier) Verify(username, password string) (bool, error) {
	if v.hash == nil {
		return false, nil
	}

	username = norm.NFKD.String(username)
	password = norm.NFKD.String(password)

	usernameOK := subtle.ConstantTimeCompare([]byte(v.username), []byte(username)) == 1
	hash := v.hash
	if !usernameOK {
		hash = []byte(dummyBcryptHash)
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	switch {
	case err == nil:
		return usernameOK, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		// Corrupt stored hash or similar internal fault.
		return false, fmt.Errorf("%w: %v", ErrVerifierFault, err)
	}
}
