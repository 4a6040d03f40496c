// Package pushtoken issues and validates the signed tokens a relay
// board presents on every POST /push/frame/{camera_id} call, replacing
// a bare random string with a verifiable, tamper-evident credential
// bound to the camera id it was issued for.
package pushtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers any signature, expiry, claim-shape or
// camera-id-mismatch failure — callers don't need to distinguish which.
var ErrInvalidToken = errors.New("invalid_camera_token")

// Claims identifies the camera a push token authorizes frames for.
type Claims struct {
	CameraID string `json:"camera_id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies camera push tokens with a single HMAC key.
type Manager struct {
	signingKey []byte
}

// NewManager builds a Manager from the configured signing key.
func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey)}
}

// Issue mints a long-lived token for cameraID — relay boards are paired
// once via claim code and then push indefinitely, so there is no
// refresh flow; rotation means re-pairing.
func (m *Manager) Issue(cameraID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		CameraID: cameraID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.AddDate(1, 0, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Subject:   cameraID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "v1"
	return token.SignedString(m.signingKey)
}

// Verify checks tokenString is a validly-signed, unexpired token
// issued for cameraID.
func (m *Manager) Verify(tokenString, cameraID string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return ErrInvalidToken
	}
	if claims.CameraID != cameraID {
		return ErrInvalidToken
	}
	return nil
}
