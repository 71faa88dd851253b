// internal/auth/web.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WebTokenService mints and verifies the JWTs used by the WEB auth method,
// where a logged-in web account opens a channel without the game-server
// capability digest.
type WebTokenService struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expire     time.Duration
}

// NewWebTokenService generates a fresh ed25519 key pair. Tokens do not
// survive a restart; web clients re-authenticate against their account.
// expire = 0 means tokens never expire.
func NewWebTokenService(expire time.Duration) (*WebTokenService, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &WebTokenService{privateKey: priv, publicKey: pub, expire: expire}, nil
}

// NewWebTokenServiceFromPath reads an ed25519 key pair from files, for
// deployments that need tokens to validate across restarts.
func NewWebTokenServiceFromPath(privatePath, publicPath string, expire time.Duration) (*WebTokenService, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return &WebTokenService{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expire:     expire,
	}, nil
}

// Mint creates a signed JWT with "sub" = identity external id and "sid" =
// session id.
func (ws *WebTokenService) Mint(identityID string, sessionID int) (string, error) {
	claims := jwt.MapClaims{
		"sub": identityID,
		"sid": sessionID,
	}
	if ws.expire > 0 {
		claims["exp"] = time.Now().Add(ws.expire).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ws.privateKey)
}

// Verify checks a JWT and returns the identity external id and session id it
// was minted for.
func (ws *WebTokenService) Verify(tokenString string) (string, int, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ws.publicKey, nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", 0, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", 0, fmt.Errorf("invalid jwt claims")
	}
	identityID, ok := claims["sub"].(string)
	if !ok {
		return "", 0, fmt.Errorf("missing sub in jwt")
	}
	sid, ok := claims["sid"].(float64)
	if !ok {
		return "", 0, fmt.Errorf("missing sid in jwt")
	}
	return identityID, int(sid), nil
}
