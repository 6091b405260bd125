// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcpconnect/authkit/internal/errors"
	"github.com/mcpconnect/authkit/internal/oauth"
)

// tokenValidityWindow is the minimum remaining lifetime for a token to be
// considered usable without refreshing.
const tokenValidityWindow = 5 * time.Minute

// TokenSet holds the credentials obtained from a token endpoint.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	// ExpiresAt is the absolute expiry, nil when the server provided no
	// lifetime and none could be derived from the token itself.
	ExpiresAt *time.Time
}

// NewTokenSet converts a token endpoint response into a TokenSet.
// Expiry comes from expires_in when present; otherwise, if the access
// token is a JWT, its exp claim is used without signature verification.
func NewTokenSet(resp *oauth.TokenResponse) (*TokenSet, error) {
	if resp == nil || resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", errors.ErrAuthenticationFailed)
	}

	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	ts := &TokenSet{
		AccessToken:  resp.AccessToken,
		TokenType:    tokenType,
		RefreshToken: resp.RefreshToken,
		Scope:        resp.Scope,
	}

	if resp.ExpiresIn != nil {
		expiry := time.Now().Add(time.Duration(*resp.ExpiresIn) * time.Second)
		ts.ExpiresAt = &expiry
	} else if expiry := jwtExpiry(resp.AccessToken); expiry != nil {
		ts.ExpiresAt = expiry
	}
	return ts, nil
}

// jwtExpiry extracts the exp claim from a JWT access token. The token is
// not verified; the claim only informs the local refresh schedule.
func jwtExpiry(accessToken string) *time.Time {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	expiry := claims.ExpiresAt.Time
	return &expiry
}

// Valid reports whether the token can still be used. Tokens without a
// known expiry are treated as valid.
func (t *TokenSet) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt == nil {
		return true
	}
	return time.Until(*t.ExpiresAt) > tokenValidityWindow
}

// AuthorizationHeaders renders the token as request headers.
func (t *TokenSet) AuthorizationHeaders() map[string]string {
	return map[string]string{
		"Authorization": t.TokenType + " " + t.AccessToken,
	}
}
