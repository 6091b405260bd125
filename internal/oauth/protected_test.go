// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconnect/authkit/internal/errors"
)

func TestResourceMetadataURLFromChallenge(t *testing.T) {
	header := http.Header{}
	header.Set("WWW-Authenticate",
		`Bearer realm="mcp-server", resource_metadata="https://rs.example.com/.well-known/oauth-protected-resource/mcp"`)

	url, ok := ResourceMetadataURLFromChallenge(&Challenge{StatusCode: 401, Header: header})
	require.True(t, ok)
	assert.Equal(t, "https://rs.example.com/.well-known/oauth-protected-resource/mcp", url)

	_, ok = ResourceMetadataURLFromChallenge(nil)
	assert.False(t, ok)

	_, ok = ResourceMetadataURLFromChallenge(&Challenge{StatusCode: 401, Header: http.Header{}})
	assert.False(t, ok)

	noParam := http.Header{}
	noParam.Set("WWW-Authenticate", `Bearer realm="mcp-server"`)
	_, ok = ResourceMetadataURLFromChallenge(&Challenge{StatusCode: 401, Header: noParam})
	assert.False(t, ok)
}

func TestDiscoverProtectedResourceMetadataFromChallenge(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/custom/prm", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&ProtectedResourceMetadata{
			Resource:             server.URL + "/mcp",
			AuthorizationServers: []AuthorizationServerRef{"https://auth.example.com"},
		})
	})

	header := http.Header{}
	header.Set("WWW-Authenticate", `Bearer resource_metadata="`+server.URL+`/custom/prm"`)
	challenge := &Challenge{StatusCode: 401, Header: header, ServerURL: server.URL}

	prm, err := DiscoverProtectedResourceMetadata(context.Background(), server.URL, "mcp", challenge, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", prm.FirstAuthorizationServer())
}

func TestDiscoverProtectedResourceMetadataWellKnownFallback(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/.well-known/oauth-protected-resource/mcp", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&ProtectedResourceMetadata{
			Resource:             server.URL + "/mcp",
			AuthorizationServers: []AuthorizationServerRef{"https://auth.example.com"},
		})
	})

	// Challenge without a resource_metadata hint.
	challenge := &Challenge{StatusCode: 401, Header: http.Header{}, ServerURL: server.URL}

	prm, err := DiscoverProtectedResourceMetadata(context.Background(), server.URL, "mcp", challenge, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", prm.FirstAuthorizationServer())
}

func TestDiscoverProtectedResourceMetadataNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	challenge := &Challenge{StatusCode: 401, Header: http.Header{}, ServerURL: server.URL}

	_, err := DiscoverProtectedResourceMetadata(context.Background(), server.URL, "mcp", challenge, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtectedResourceMetadataNotFound)
}

func TestProtectedResourceWellKnownURL(t *testing.T) {
	url, err := protectedResourceWellKnownURL("https://rs.example.com/some/path", "mcp")
	require.NoError(t, err)
	assert.Equal(t, "https://rs.example.com/.well-known/oauth-protected-resource/mcp", url)

	url, err = protectedResourceWellKnownURL("https://rs.example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "https://rs.example.com/.well-known/oauth-protected-resource", url)

	_, err = protectedResourceWellKnownURL("not-absolute", "mcp")
	assert.Error(t, err)
}
