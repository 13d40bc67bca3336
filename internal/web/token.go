package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/openconf/paperdrop/internal/platform/errors"
)

// tokenIssuer identifies tokens minted by this service.
const tokenIssuer = "paperdrop"

// sessionClaims carries the authenticated identity between requests. The
// core treats (paperId, email) as an opaque verified key.
type sessionClaims struct {
	jwt.RegisteredClaims
	PaperID int    `json:"paper_id"`
	Email   string `json:"email"`
}

// tokenCodec signs and verifies session tokens with an HMAC secret.
type tokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenCodec(secret string, ttl time.Duration, now func() time.Time) (*tokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &tokenCodec{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Encode mints a signed session token for a verified identity.
func (c *tokenCodec) Encode(paperID int, email string) (string, error) {
	issued := c.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(c.ttl)),
		},
		PaperID: paperID,
		Email:   email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Decode verifies a session token and returns the identity it carries. Every
// failure maps to the generic auth error.
func (c *tokenCodec) Decode(token string) (paperID int, email string, err error) {
	authErr := apperrors.E(apperrors.KindUnauthorized, apperrors.CodeInvalidAuth, "invalid session")

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return 0, "", authErr
	}
	if claims.Email == "" {
		return 0, "", authErr
	}
	return claims.PaperID, claims.Email, nil
}
