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

func TestBuildMetadataCandidates(t *testing.T) {
	t.Run("issuer without path", func(t *testing.T) {
		issuer, err := url.Parse("https://auth.example.com")
		require.NoError(t, err)

		candidates := buildMetadataCandidates(issuer)
		require.Len(t, candidates, 2)
		assert.Equal(t, "https://auth.example.com/.well-known/oauth-authorization-server", candidates[0].URL)
		assert.Equal(t, kindOAuth, candidates[0].Kind)
		assert.Equal(t, "https://auth.example.com/.well-known/openid-configuration", candidates[1].URL)
		assert.Equal(t, kindOIDC, candidates[1].Kind)
	})

	t.Run("issuer with path", func(t *testing.T) {
		issuer, err := url.Parse("https://auth.example.com/tenant1")
		require.NoError(t, err)

		candidates := buildMetadataCandidates(issuer)
		require.Len(t, candidates, 3)
		assert.Equal(t, "https://auth.example.com/.well-known/oauth-authorization-server/tenant1", candidates[0].URL)
		assert.Equal(t, "https://auth.example.com/.well-known/openid-configuration/tenant1", candidates[1].URL)
		assert.Equal(t, "https://auth.example.com/tenant1/.well-known/openid-configuration", candidates[2].URL)
	})

	t.Run("trailing slash ignored", func(t *testing.T) {
		withSlash, err := url.Parse("https://auth.example.com/tenant1/")
		require.NoError(t, err)
		without, err := url.Parse("https://auth.example.com/tenant1")
		require.NoError(t, err)

		assert.Equal(t, buildMetadataCandidates(without), buildMetadataCandidates(withSlash))
	})
}

func serverMetadataFor(issuer string) *ServerMetadata {
	return &ServerMetadata{
		Issuer:                        issuer,
		AuthorizationEndpoint:         issuer + "/authorize",
		TokenEndpoint:                 issuer + "/token",
		CodeChallengeMethodsSupported: []string{"S256"},
	}
}

func TestDiscoverServerMetadata(t *testing.T) {
	var requested []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("MCP-Protocol-Version"))
		json.NewEncoder(w).Encode(serverMetadataFor(server.URL))
	})

	metadata, err := DiscoverServerMetadata(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, metadata.Issuer)
	assert.Equal(t, server.URL+"/token", metadata.TokenEndpoint)
	assert.Equal(t, []string{"/.well-known/oauth-authorization-server"}, requested)
}

func TestDiscoverServerMetadataFallsBackToOIDC(t *testing.T) {
	var requested []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	// Default handler answers 404, so the OAuth candidate misses.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		json.NewEncoder(w).Encode(serverMetadataFor(server.URL))
	})

	metadata, err := DiscoverServerMetadata(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, metadata.Issuer)
	assert.Equal(t, []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/openid-configuration",
	}, requested)
}

func TestDiscoverServerMetadataPathInsertion(t *testing.T) {
	var requested []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/tenant1/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		json.NewEncoder(w).Encode(serverMetadataFor(server.URL + "/tenant1"))
	})

	metadata, err := DiscoverServerMetadata(context.Background(), server.URL+"/tenant1", nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/tenant1", metadata.Issuer)
	assert.Equal(t, []string{
		"/.well-known/oauth-authorization-server/tenant1",
		"/.well-known/openid-configuration/tenant1",
		"/tenant1/.well-known/openid-configuration",
	}, requested)
}

func TestDiscoverServerMetadataAllCandidatesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := DiscoverServerMetadata(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMetadataDiscoveryFailed)
}

func TestDiscoverServerMetadataServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := DiscoverServerMetadata(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMetadataDiscoveryFailed)
}

func TestDiscoverServerMetadataInvalidDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Parses, but lacks the required endpoints.
		w.Write([]byte(`{"issuer": "https://auth.example.com"}`))
	}))
	defer server.Close()

	_, err := DiscoverServerMetadata(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMetadataDiscoveryFailed)
}

func TestDiscoverServerMetadataInvalidIssuer(t *testing.T) {
	_, err := DiscoverServerMetadata(context.Background(), "not a url", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidIssuerURL)

	_, err = DiscoverServerMetadata(context.Background(), "ftp://auth.example.com", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidIssuerURL)
}

func TestValidatePKCESupport(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		wantErr bool
	}{
		{name: "S256 supported", methods: []string{"S256"}, wantErr: false},
		{name: "S256 among others", methods: []string{"plain", "S256"}, wantErr: false},
		{name: "field absent", methods: nil, wantErr: true},
		{name: "field empty", methods: []string{}, wantErr: true},
		{name: "plain only", methods: []string{"plain"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := serverMetadataFor("https://auth.example.com")
			metadata.CodeChallengeMethodsSupported = tt.methods

			err := metadata.ValidatePKCESupport()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrPKCENotSupported)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizationServerRefDecode(t *testing.T) {
	var prm ProtectedResourceMetadata
	err := json.Unmarshal([]byte(`{
		"resource": "https://rs.example.com/mcp",
		"authorization_servers": ["https://auth.example.com", {"issuer": "https://other.example.com"}]
	}`), &prm)
	require.NoError(t, err)
	require.Len(t, prm.AuthorizationServers, 2)
	assert.Equal(t, "https://auth.example.com", string(prm.AuthorizationServers[0]))
	assert.Equal(t, "https://other.example.com", string(prm.AuthorizationServers[1]))
	assert.Equal(t, "https://auth.example.com", prm.FirstAuthorizationServer())
}
