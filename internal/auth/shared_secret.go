package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/humetime/backend/internal/distribution"
)

var (
	// ErrMissingSharedSecret is returned when the request carried no secret header.
	ErrMissingSharedSecret = errors.New("shared secret: header missing")
	// ErrInvalidSharedSecret is returned when the supplied secret does not match.
	ErrInvalidSharedSecret = errors.New("shared secret: mismatch")
)

// SharedSecretGate admits requests whose secret header equals the configured value.
// A gate with an empty secret admits everything.
type SharedSecretGate struct {
	secret []byte
}

func NewSharedSecretGate(secret string) *SharedSecretGate {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &SharedSecretGate{}
	}
	return &SharedSecretGate{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (g *SharedSecretGate) Enabled() bool {
	return g != nil && len(g.secret) > 0
}

// Check compares the provided header value in constant time. Failures wrap
// distribution.ErrUnauthorized.
func (g *SharedSecretGate) Check(provided string) error {
	if !g.Enabled() {
		return nil
	}
	if provided == "" {
		return fmt.Errorf("%w: %w", distribution.ErrUnauthorized, ErrMissingSharedSecret)
	}
	if subtle.ConstantTimeCompare([]byte(provided), g.secret) != 1 {
		return fmt.Errorf("%w: %w", distribution.ErrUnauthorized, ErrInvalidSharedSecret)
	}
	return nil
}
