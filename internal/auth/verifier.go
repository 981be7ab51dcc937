package auth

import (
	"context"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const CookieName = "token"

var (
	ErrNoCredential = errors.New("auth: no credential")
	ErrInvalid      = errors.New("auth: invalid credential")
	ErrRevoked      = errors.New("auth: credential revoked")
)

// RevocationList reports tokens invalidated by logout before they expire.
type RevocationList interface {
	Revoked(ctx context.Context, token string) (bool, error)
}

type claims struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with the shared auth-service secret.
type Verifier struct {
	secret  []byte
	revoked RevocationList
}

func NewVerifier(secret string, revoked RevocationList) *Verifier {
	return &Verifier{secret: []byte(secret), revoked: revoked}
}

func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoCredential
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ID == "" || c.Role == "" {
		return Identity{}, fmt.Errorf("%w: missing id or role", ErrInvalid)
	}
	if v.revoked != nil {
		revoked, err := v.revoked.Revoked(ctx, token)
		if err != nil {
			// Revocation store outage should not lock every caller out.
			slog.WarnContext(ctx, "revocation check failed", "error", err)
		} else if revoked {
			return Identity{}, ErrRevoked
		}
	}
	return Identity{ID: c.ID, Role: c.Role}, nil
}

// Issue signs a token the same way the auth service does.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID:   id.ID,
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.secret)
}

// TokenFromRequest reads the credential from the token cookie, falling back
// to an Authorization: Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}
