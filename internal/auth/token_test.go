// internal/auth/token_test.go
package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDeterministic(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	ts := NewTokenService("srv1", secret)

	a := ts.Token("salt", "stats", "76561198000000001", "overview", 1)
	b := ts.Token("salt", "stats", "76561198000000001", "overview", 1)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128, "hex sha512 digest")
}

func TestTokenChangesWithEveryInput(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	ts := NewTokenService("srv1", secret)

	base := ts.Token("salt", "stats", "76561198000000001", "overview", 1)

	variants := []string{
		ts.Token("other", "stats", "76561198000000001", "overview", 1),
		ts.Token("salt", "shop", "76561198000000001", "overview", 1),
		ts.Token("salt", "stats", "76561198000000002", "overview", 1),
		ts.Token("salt", "stats", "76561198000000001", "catalog", 1),
		ts.Token("salt", "stats", "76561198000000001", "overview", 2),
		NewTokenService("srv2", secret).Token("salt", "stats", "76561198000000001", "overview", 1),
		NewTokenService("srv1", []byte("ffffffffffffffffffffffffffffffff")).
			Token("salt", "stats", "76561198000000001", "overview", 1),
	}
	for i, v := range variants {
		assert.NotEqual(t, base, v, "variant %d must produce a different digest", i)
	}
}

func TestTokenRotationInvalidatesOnlyOneIdentity(t *testing.T) {
	ts := NewTokenService("srv1", []byte("0123456789abcdef0123456789abcdef"))

	before := ts.Token("oldsalt", "stats", "id-a", "overview", 1)
	after := ts.Token("newsalt", "stats", "id-a", "overview", 1)
	assert.NotEqual(t, before, after, "rotating the secret must invalidate old tokens")

	otherBefore := ts.Token("salt-b", "stats", "id-b", "overview", 1)
	otherAfter := ts.Token("salt-b", "stats", "id-b", "overview", 1)
	assert.Equal(t, otherBefore, otherAfter, "other identities must be unaffected")
}

func TestLoadOrCreateProcessSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.dat")

	first, err := LoadOrCreateProcessSecret(path)
	require.NoError(t, err)
	require.Len(t, first, ProcessSecretLength)

	second, err := LoadOrCreateProcessSecret(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "secret must be stable across restarts")
}

func TestWebTokenRoundTrip(t *testing.T) {
	ws, err := NewWebTokenService(0)
	require.NoError(t, err)

	token, err := ws.Mint("76561198000000001", 7)
	require.NoError(t, err)

	identityID, sessionID, err := ws.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", identityID)
	assert.Equal(t, 7, sessionID)

	other, err := NewWebTokenService(0)
	require.NoError(t, err)
	_, _, err = other.Verify(token)
	assert.Error(t, err, "token signed with a different key must not verify")
}
