// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPKCEOAuthAuthProviderFlow(t *testing.T) {
	authServer := newFakeAuthServer(t)
	authServer.withRegistration = false

	provider, err := NewPKCEOAuthAuthProvider(PKCEOAuthConfig{
		IssuerURL:   authServer.URL,
		ClientID:    "pre-registered",
		RedirectURI: "http://localhost:8085/callback",
		Scope:       "mcp",
		Resource:    "https://rs.example.com/mcp",
	}, WithLogger(discardLogger{}))
	require.NoError(t, err)
	assert.Equal(t, SchemeOAuth, provider.Scheme())

	payload, err := provider.StartAuthorizationFlow(context.Background())
	require.NoError(t, err)

	authURL, err := url.Parse(payload.AuthorizationURL)
	require.NoError(t, err)
	query := authURL.Query()
	assert.Equal(t, "pre-registered", query.Get("client_id"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, payload.State, query.Get("state"))
	assert.Equal(t, "https://rs.example.com/mcp", query.Get("resource"))

	authServer.issuedChallenge = query.Get("code_challenge")

	require.NoError(t, provider.CompleteAuthorizationFlow(context.Background(), "auth-code", payload.State))
	assert.True(t, provider.IsAuthenticationValid())

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, result.Status)
	assert.Equal(t, map[string]string{"Authorization": "Bearer access-1"}, result.Headers)
}

func TestPKCEOAuthAuthProviderFreshStatePerFlow(t *testing.T) {
	authServer := newFakeAuthServer(t)

	provider, err := NewPKCEOAuthAuthProvider(PKCEOAuthConfig{
		IssuerURL:   authServer.URL,
		ClientID:    "pre-registered",
		RedirectURI: "http://localhost:8085/callback",
	}, WithLogger(discardLogger{}))
	require.NoError(t, err)

	first, err := provider.StartAuthorizationFlow(context.Background())
	require.NoError(t, err)
	second, err := provider.StartAuthorizationFlow(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.State, second.State)
	assert.NotEqual(t, first.AuthorizationURL, second.AuthorizationURL)

	// Only the latest state completes.
	assert.ErrorIs(t,
		provider.CompleteAuthorizationFlow(context.Background(), "auth-code", first.State),
		ErrAuthenticationFailed)
	require.NoError(t, provider.CompleteAuthorizationFlow(context.Background(), "auth-code", second.State))
}

func TestPKCEOAuthAuthProviderGate(t *testing.T) {
	authServer := newFakeAuthServer(t)
	authServer.challengeMethods = []string{"plain"}

	provider, err := NewPKCEOAuthAuthProvider(PKCEOAuthConfig{
		IssuerURL:   authServer.URL,
		ClientID:    "pre-registered",
		RedirectURI: "http://localhost:8085/callback",
	}, WithLogger(discardLogger{}))
	require.NoError(t, err)

	_, err = provider.StartAuthorizationFlow(context.Background())
	assert.ErrorIs(t, err, ErrPKCENotSupported)
}

func TestPKCEOAuthAuthProviderHeadersReportManualFlow(t *testing.T) {
	authServer := newFakeAuthServer(t)

	provider, err := NewPKCEOAuthAuthProvider(PKCEOAuthConfig{
		IssuerURL:   authServer.URL,
		ClientID:    "pre-registered",
		RedirectURI: "http://localhost:8085/callback",
	}, WithLogger(discardLogger{}))
	require.NoError(t, err)

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusManualFlowRequired, result.Status)
	require.NotNil(t, result.Manual)
	assert.NotEmpty(t, result.Manual.AuthorizationURL)
}

func TestPKCEOAuthAuthProviderValidation(t *testing.T) {
	_, err := NewPKCEOAuthAuthProvider(PKCEOAuthConfig{ClientID: "c", RedirectURI: "http://localhost/cb"})
	assert.ErrorIs(t, err, ErrInvalidIssuerURL)

	_, err = NewPKCEOAuthAuthProvider(PKCEOAuthConfig{IssuerURL: "https://as.example.com", RedirectURI: "http://localhost/cb"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = NewPKCEOAuthAuthProvider(PKCEOAuthConfig{IssuerURL: "https://as.example.com", ClientID: "c"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
