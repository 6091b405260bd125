// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconnect/authkit/internal/errors"
)

func TestSelectClientAuthMethod(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		supported []string
		want      ClientAuthMethod
	}{
		{name: "no secret, no advertisement", secret: "", supported: nil, want: ClientAuthMethodNone},
		{name: "secret, no advertisement", secret: "s", supported: nil, want: ClientAuthMethodPost},
		{name: "secret prefers basic", secret: "s", supported: []string{"client_secret_post", "client_secret_basic"}, want: ClientAuthMethodBasic},
		{name: "secret falls back to post", secret: "s", supported: []string{"client_secret_post"}, want: ClientAuthMethodPost},
		{name: "no secret uses none", secret: "", supported: []string{"client_secret_basic", "none"}, want: ClientAuthMethodNone},
		{name: "secret, unknown methods only", secret: "s", supported: []string{"private_key_jwt"}, want: ClientAuthMethodPost},
		{name: "no secret, unknown methods only", secret: "", supported: []string{"private_key_jwt"}, want: ClientAuthMethodNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectClientAuthMethod(tt.secret, tt.supported))
		})
	}
}

func TestApplyClientAuthentication(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		headers := http.Header{}
		params := url.Values{}
		require.NoError(t, applyClientAuthentication(ClientAuthMethodBasic, "id", "secret", headers, params))
		assert.Equal(t, "Basic aWQ6c2VjcmV0", headers.Get("Authorization"))
		assert.Empty(t, params.Get("client_id"))
	})

	t.Run("basic without secret", func(t *testing.T) {
		require.Error(t, applyClientAuthentication(ClientAuthMethodBasic, "id", "", http.Header{}, url.Values{}))
	})

	t.Run("post", func(t *testing.T) {
		params := url.Values{}
		require.NoError(t, applyClientAuthentication(ClientAuthMethodPost, "id", "secret", http.Header{}, params))
		assert.Equal(t, "id", params.Get("client_id"))
		assert.Equal(t, "secret", params.Get("client_secret"))
	})

	t.Run("none", func(t *testing.T) {
		params := url.Values{}
		require.NoError(t, applyClientAuthentication(ClientAuthMethodNone, "id", "", http.Header{}, params))
		assert.Equal(t, "id", params.Get("client_id"))
		assert.Empty(t, params.Get("client_secret"))
	})
}

func TestExchangeAuthorizationCode(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		json.NewEncoder(w).Encode(&TokenResponse{
			AccessToken:  "access-1",
			TokenType:    "Bearer",
			RefreshToken: "refresh-1",
		})
	}))
	defer server.Close()

	tokens, err := ExchangeAuthorizationCode(context.Background(), TokenEndpointOptions{
		TokenEndpoint: server.URL,
		ClientID:      "abc123",
	}, ExchangeRequest{
		Code:         "auth-code",
		CodeVerifier: "verifier",
		RedirectURI:  "http://localhost/cb",
		Resource:     "https://rs.example.com/mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code", form.Get("code"))
	assert.Equal(t, "verifier", form.Get("code_verifier"))
	assert.Equal(t, "http://localhost/cb", form.Get("redirect_uri"))
	assert.Equal(t, "https://rs.example.com/mcp", form.Get("resource"))
	assert.Equal(t, "abc123", form.Get("client_id"))
}

func TestRefreshAccessToken(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		// No refresh_token in the response.
		json.NewEncoder(w).Encode(&TokenResponse{AccessToken: "access-2", TokenType: "Bearer"})
	}))
	defer server.Close()

	tokens, err := RefreshAccessToken(context.Background(), TokenEndpointOptions{
		TokenEndpoint: server.URL,
		ClientID:      "abc123",
	}, RefreshRequest{
		RefreshToken: "refresh-1",
		Scope:        "mcp",
		Resource:     "https://rs.example.com/mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", tokens.AccessToken)
	// The original refresh token is retained.
	assert.Equal(t, "refresh-1", tokens.RefreshToken)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-1", form.Get("refresh_token"))
	assert.Equal(t, "mcp", form.Get("scope"))
	assert.Equal(t, "https://rs.example.com/mcp", form.Get("resource"))
}

func TestTokenRequestOAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant", "error_description": "refresh token revoked"}`))
	}))
	defer server.Close()

	_, err := RefreshAccessToken(context.Background(), TokenEndpointOptions{
		TokenEndpoint: server.URL,
		ClientID:      "abc123",
	}, RefreshRequest{RefreshToken: "revoked"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidGrant)

	var oauthErr *errors.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, errors.ErrInvalidGrant, oauthErr.Code)
	assert.Equal(t, "refresh token revoked", oauthErr.Description)
}

func TestTokenRequestNonOAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := ExchangeAuthorizationCode(context.Background(), TokenEndpointOptions{
		TokenEndpoint: server.URL,
		ClientID:      "abc123",
	}, ExchangeRequest{Code: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestTokenRequestMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer server.Close()

	_, err := ExchangeAuthorizationCode(context.Background(), TokenEndpointOptions{
		TokenEndpoint: server.URL,
		ClientID:      "abc123",
	}, ExchangeRequest{Code: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}
