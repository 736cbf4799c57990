// Package auth issues and verifies the HMAC-signed tokens the gateway
// accepts during the authenticate handshake.
package auth

import (
	"errors"
	"fmt"
	"time"

	"tickethub/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "tickethub-service"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrBadClaims    = errors.New("token claims incomplete")
)

// Verifier validates opaque credentials and maps them to an Actor.
// It is the only component that knows the signing secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// IssueToken генерує JWT з ідентичністю актора.
func (v *Verifier) IssueToken(actor models.Actor, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"name": actor.DisplayName,
		"role": actor.Role,
		"exp":  time.Now().Add(ttl).Unix(),
		"iss":  issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates a token and returns the actor it encodes.
// Expiry and issuer are enforced; any failure is reported as ErrInvalidToken
// so callers never leak parsing detail to the wire.
func (v *Verifier) Verify(tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return models.Actor{}, ErrBadClaims
	}
	if role != models.RoleClient && role != models.RoleAdmin {
		return models.Actor{}, ErrBadClaims
	}

	return models.Actor{ID: sub, DisplayName: name, Role: role}, nil
}
