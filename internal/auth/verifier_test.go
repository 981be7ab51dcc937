package auth

import (
	"context"
	"errors"
	"github.com/golang-jwt/jwt/v5"
	"net/http/httptest"
	"testing"
	"time"
)

type revokedSet map[string]bool

func (r revokedSet) Revoked(_ context.Context, tok string) (bool, error) { return r[tok], nil }

type brokenList struct{}

func (brokenList) Revoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("secret", nil)
	tok, err := v.Issue(Identity{ID: "u1", Role: RoleAdmin}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ID != "u1" || !id.IsAdmin() {
		t.Fatalf("identity = %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret", revokedSet{})
	expired, _ := v.Issue(Identity{ID: "u1", Role: RoleUser}, -time.Minute)
	foreign, _ := NewVerifier("other", nil).Issue(Identity{ID: "u1", Role: RoleUser}, time.Minute)
	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u1"}).SignedString([]byte("secret"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "u1", "role": "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]struct {
		token string
		want  error
	}{
		"empty":        {"", ErrNoCredential},
		"garbage":      {"not.a.jwt", ErrInvalid},
		"expired":      {expired, ErrInvalid},
		"wrong key":    {foreign, ErrInvalid},
		"missing role": {noRole, ErrInvalid},
		"alg none":     {none, ErrInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVerifyRevocation(t *testing.T) {
	v := NewVerifier("secret", nil)
	tok, _ := v.Issue(Identity{ID: "u1", Role: RoleUser}, time.Minute)

	revoked := NewVerifier("secret", revokedSet{tok: true})
	if _, err := revoked.Verify(context.Background(), tok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("err = %v, want revoked", err)
	}
	// an unavailable revocation store does not lock callers out
	if _, err := NewVerifier("secret", brokenList{}).Verify(context.Background(), tok); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := TokenFromRequest(r); got != "abc" {
		t.Fatalf("bearer token = %q", got)
	}
	r.Header.Set("Cookie", CookieName+"=from-cookie")
	if got := TokenFromRequest(r); got != "from-cookie" {
		t.Fatalf("cookie should win, got %q", got)
	}
	if got := TokenFromRequest(httptest.NewRequest("GET", "/", nil)); got != "" {
		t.Fatalf("no credential = %q", got)
	}
}
