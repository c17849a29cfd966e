package apns

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSigningKey returns a fresh P-256 key in the PKCS#8 PEM form Apple
// ships .p8 files in.
func testSigningKey(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestNewAssertionManager(t *testing.T) {
	t.Run("rejects malformed key material", func(t *testing.T) {
		_, err := NewAssertionManager([]byte("not a key"), "KEY1", "TEAM1", time.Hour, 20*time.Minute)
		require.Error(t, err)
	})

	t.Run("rejects margin not shorter than validity", func(t *testing.T) {
		_, err := NewAssertionManager(testSigningKey(t), "KEY1", "TEAM1", time.Hour, time.Hour)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "renewal margin")
	})

	t.Run("prepares the shared token", func(t *testing.T) {
		m, err := NewAssertionManager(testSigningKey(t), "KEY1", "TEAM1", time.Hour, 20*time.Minute)
		require.NoError(t, err)
		tok := m.Token()
		assert.Equal(t, "KEY1", tok.KeyID)
		assert.Equal(t, "TEAM1", tok.TeamID)
		assert.Empty(t, tok.Bearer)
	})
}

func TestAssertionManager_Refresh(t *testing.T) {
	newManager := func(t *testing.T) (*AssertionManager, *time.Time) {
		t.Helper()
		m, err := NewAssertionManager(testSigningKey(t), "KEY1", "TEAM1", time.Hour, 20*time.Minute)
		require.NoError(t, err)
		clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return clock }
		return m, &clock
	}

	t.Run("first refresh signs a verifiable assertion", func(t *testing.T) {
		m, clock := newManager(t)

		require.NoError(t, m.Refresh())
		tok := m.Token()
		require.NotEmpty(t, tok.Bearer)
		assert.Equal(t, clock.Unix(), tok.IssuedAt)

		parsed, err := jwt.Parse(tok.Bearer, func(*jwt.Token) (interface{}, error) {
			return &m.key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"ES256"}))
		require.NoError(t, err)

		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "TEAM1", claims["iss"])
		assert.Equal(t, float64(clock.Unix()), claims["iat"])
		assert.Equal(t, "KEY1", parsed.Header["kid"])
	})

	t.Run("no-op inside the renewal window", func(t *testing.T) {
		m, clock := newManager(t)
		require.NoError(t, m.Refresh())
		first := m.Token().Bearer

		// Validity 60m, margin 20m: renewal is due at 40m.
		*clock = clock.Add(39 * time.Minute)
		require.NoError(t, m.Refresh())
		assert.Equal(t, first, m.Token().Bearer)
	})

	t.Run("re-signs once the margin is reached", func(t *testing.T) {
		m, clock := newManager(t)
		require.NoError(t, m.Refresh())
		first := m.Token().Bearer

		*clock = clock.Add(41 * time.Minute)
		require.NoError(t, m.Refresh())
		second := m.Token().Bearer
		require.NotEqual(t, first, second)

		parsed, err := jwt.Parse(second, func(*jwt.Token) (interface{}, error) {
			return &m.key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"ES256"}))
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, float64(clock.Unix()), claims["iat"])
	})
}
