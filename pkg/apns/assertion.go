package apns

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sideshow/apns2/token"
)

// AssertionManager signs the ES256 provider assertion APNs requires and
// renews it before it expires, so in-flight pushes never carry a stale
// bearer.
type AssertionManager struct {
	mu       sync.Mutex
	key      *ecdsa.PrivateKey
	keyID    string
	teamID   string
	validity time.Duration
	margin   time.Duration
	now      func() time.Time

	tok      *token.Token
	issuedAt time.Time
}

// NewAssertionManager parses the .p8 signing key and prepares a manager that
// renews the assertion once less than margin of its validity remains.
func NewAssertionManager(p8 []byte, keyID, teamID string, validity, margin time.Duration) (*AssertionManager, error) {
	key, err := token.AuthKeyFromBytes(p8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs signing key: %w", err)
	}
	if margin >= validity {
		return nil, fmt.Errorf("renewal margin %s must be shorter than assertion validity %s", margin, validity)
	}

	return &AssertionManager{
		key:      key,
		keyID:    keyID,
		teamID:   teamID,
		validity: validity,
		margin:   margin,
		now:      time.Now,
		tok: &token.Token{
			AuthKey: key,
			KeyID:   keyID,
			TeamID:  teamID,
		},
	}, nil
}

// Token returns the shared token handed to the HTTP/2 client. Refresh keeps
// its Bearer current.
func (m *AssertionManager) Token() *token.Token {
	return m.tok
}

// Refresh re-signs the assertion if it is past its renewal point and is a
// no-op otherwise. Safe for concurrent use.
func (m *AssertionManager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.issuedAt.IsZero() && now.Before(m.issuedAt.Add(m.validity-m.margin)) {
		return nil
	}

	claims := jwt.MapClaims{
		"iss": m.teamID,
		"iat": now.Unix(),
	}
	assertion := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	assertion.Header["kid"] = m.keyID

	bearer, err := assertion.SignedString(m.key)
	if err != nil {
		return fmt.Errorf("failed to sign provider assertion: %w", err)
	}

	// Stamping IssuedAt keeps the client library's own expiry check
	// satisfied so it never re-signs behind the manager's back.
	m.tok.Lock()
	m.tok.Bearer = bearer
	m.tok.IssuedAt = now.Unix()
	m.tok.Unlock()

	m.issuedAt = now
	return nil
}
