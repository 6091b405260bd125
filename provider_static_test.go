// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyAuthProvider(t *testing.T) {
	provider, err := NewAPIKeyAuthProvider("secret-key", "")
	require.NoError(t, err)
	assert.Equal(t, SchemeAPIKey, provider.Scheme())
	assert.True(t, provider.IsAuthenticationValid())

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, result.Status)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret-key"}, result.Headers)

	// A challenge re-offers the same key.
	challenged, err := provider.HandleAuthenticationChallenge(context.Background(), &AuthenticationChallenge{StatusCode: 401})
	require.NoError(t, err)
	assert.Equal(t, result.Headers, challenged.Headers)

	provider.Cleanup()
	assert.False(t, provider.IsAuthenticationValid())
	_, err = provider.AuthenticationHeaders(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAPIKeyAuthProviderCustomHeader(t *testing.T) {
	provider, err := NewAPIKeyAuthProvider("secret-key", "X-Custom-Key")
	require.NoError(t, err)

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Custom-Key": "secret-key"}, result.Headers)
}

func TestAPIKeyAuthProviderEmptyKey(t *testing.T) {
	_, err := NewAPIKeyAuthProvider("", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBasicAuthProvider(t *testing.T) {
	provider, err := NewBasicAuthProvider("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, SchemeBasic, provider.Scheme())

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, result.Status)
	// base64("alice:s3cret")
	assert.Equal(t, map[string]string{"Authorization": "Basic YWxpY2U6czNjcmV0"}, result.Headers)

	provider.Cleanup()
	_, err = provider.AuthenticationHeaders(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBasicAuthProviderEmptyUsername(t *testing.T) {
	_, err := NewBasicAuthProvider("", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBearerAuthProvider(t *testing.T) {
	provider, err := NewBearerAuthProvider("token-1", nil)
	require.NoError(t, err)
	assert.Equal(t, SchemeBearer, provider.Scheme())

	result, err := provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer token-1"}, result.Headers)

	// Without a refresh callback a challenge is terminal.
	_, err = provider.HandleAuthenticationChallenge(context.Background(), &AuthenticationChallenge{StatusCode: 401})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBearerAuthProviderRefresh(t *testing.T) {
	calls := 0
	provider, err := NewBearerAuthProvider("token-1", func(ctx context.Context) (string, error) {
		calls++
		return "token-2", nil
	})
	require.NoError(t, err)

	result, err := provider.HandleAuthenticationChallenge(context.Background(), &AuthenticationChallenge{StatusCode: 401})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer token-2"}, result.Headers)
	assert.Equal(t, 1, calls)

	// The replaced token is now served.
	result, err = provider.AuthenticationHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer token-2"}, result.Headers)
	assert.Equal(t, 1, calls)
}

func TestBearerAuthProviderCoalescesConcurrentRefreshes(t *testing.T) {
	var calls int32
	provider, err := NewBearerAuthProvider("", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "fresh-token", nil
	})
	require.NoError(t, err)

	const callers = 4
	results := make([]*HeadersResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = provider.AuthenticationHeaders(context.Background())
		}(i)
	}
	wg.Wait()

	// The callback runs once; every caller observes its result.
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]string{"Authorization": "Bearer fresh-token"}, results[i].Headers)
	}
}

func TestBearerAuthProviderRefreshReusesReplacedToken(t *testing.T) {
	calls := 0
	provider, err := NewBearerAuthProvider("fresh-token", func(ctx context.Context) (string, error) {
		calls++
		return "unexpected-token", nil
	})
	require.NoError(t, err)

	// A caller that observed the previous token finds it already replaced
	// and reuses the replacement without invoking the callback.
	result, err := provider.refreshToken(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer fresh-token"}, result.Headers)
	assert.Equal(t, 0, calls)
}

func TestBearerAuthProviderRequiresTokenOrCallback(t *testing.T) {
	_, err := NewBearerAuthProvider("", nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseAuthenticationScheme(t *testing.T) {
	assert.Equal(t, SchemeAPIKey, ParseAuthenticationScheme("APIKey"))
	assert.Equal(t, SchemeAPIKey, ParseAuthenticationScheme("api-key"))
	assert.Equal(t, SchemeBasic, ParseAuthenticationScheme(" Basic "))
	assert.Equal(t, SchemeBearer, ParseAuthenticationScheme("bearer"))
	assert.Equal(t, SchemeOAuth, ParseAuthenticationScheme("OAuth2"))

	custom := ParseAuthenticationScheme("X-Signature")
	assert.Equal(t, AuthenticationScheme("x-signature"), custom)
	assert.True(t, custom.IsCustom())
	assert.False(t, SchemeOAuth.IsCustom())
}
