// Package auth obtains the driver's identity token and tracks the sign-in
// lifecycle.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoCredential reports that the provider holds no credential to sign in with.
var ErrNoCredential = errors.New("no credential available")

// Token is an identity token issued by the external provider.
type Token struct {
	IDToken string
	Email   string
	Expiry  time.Time
}

// TokenSource obtains identity tokens. A nil token with a nil error means
// the provider has no credential, i.e. the user is signed out.
type TokenSource interface {
	FetchToken(ctx context.Context) (*Token, error)
}

type claims struct {
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// NewToken builds a Token, reading email and expiry from the JWT claims of
// idToken. The signature is not verified; the backend does that.
func NewToken(idToken string) *Token {
	t := &Token{IDToken: idToken}
	c, ok := parseClaims(idToken)
	if !ok {
		return t
	}
	t.Email = c.Email
	if c.Exp > 0 {
		t.Expiry = time.Unix(c.Exp, 0)
	}
	return t
}

func parseClaims(jwt string) (claims, bool) {
	var c claims
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return c, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return c, false
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, false
	}
	return c, true
}
