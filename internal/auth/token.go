// internal/auth/token.go
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// ProcessSecretLength is the size in bytes of the process-wide secret mixed
// into every capability token.
const ProcessSecretLength = 32

// AuthMethod discriminates how the web frontend will authorize the channel
// connection for a presented page.
type AuthMethod int

const (
	// AuthMethodGameServer authorizes with the sha512 capability digest.
	AuthMethodGameServer AuthMethod = 0
	// AuthMethodWeb authorizes with a web-account JWT instead.
	AuthMethodWeb AuthMethod = 1
)

// LoadOrCreateProcessSecret reads the process-wide token secret from path,
// generating and persisting a fresh one on first run. The secret must stay
// stable across restarts so tokens issued before a restart keep validating.
func LoadOrCreateProcessSecret(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil {
		if len(secret) != ProcessSecretLength {
			return nil, fmt.Errorf("process secret at %s has length %d, want %d",
				path, len(secret), ProcessSecretLength)
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read process secret: %w", err)
	}

	secret = make([]byte, ProcessSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate process secret: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist process secret: %w", err)
	}
	return secret, nil
}

// TokenService derives per-session capability tokens. The digest binds a
// token to one (identity, namespace, page, session) tuple and to the
// identity's current rotating secret, so rotating that secret revokes every
// previously issued token for the identity.
type TokenService struct {
	serverID      string
	processSecret []byte
}

// NewTokenService builds a token service for this server id and process
// secret. The secret is never logged or transmitted.
func NewTokenService(serverID string, processSecret []byte) *TokenService {
	return &TokenService{serverID: serverID, processSecret: processSecret}
}

// Token computes the hex sha512 capability digest. rotatingSecret is the
// identity's current rotating secret, or "" if none has been set yet.
func (ts *TokenService) Token(rotatingSecret, namespace, identityID, pageID string, sessionID int) string {
	h := sha512.New()
	h.Write([]byte(rotatingSecret))
	h.Write([]byte(ts.serverID))
	h.Write([]byte(namespace))
	h.Write([]byte(identityID))
	h.Write([]byte(pageID))
	h.Write([]byte(strconv.Itoa(sessionID)))
	h.Write(ts.processSecret)
	return hex.EncodeToString(h.Sum(nil))
}
