// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mcpconnect/authkit/internal/errors"
)

// defaultAPIKeyHeader is used when no header name is configured.
const defaultAPIKeyHeader = "X-Api-Key"

// APIKeyAuthProvider attaches a static API key to every request.
type APIKeyAuthProvider struct {
	mu     sync.RWMutex
	header string
	key    string
}

// NewAPIKeyAuthProvider builds a provider for a static API key. An empty
// headerName selects the default header.
func NewAPIKeyAuthProvider(key, headerName string) (*APIKeyAuthProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: api key is empty", errors.ErrInvalidCredentials)
	}
	if headerName == "" {
		headerName = defaultAPIKeyHeader
	}
	return &APIKeyAuthProvider{header: headerName, key: key}, nil
}

func (p *APIKeyAuthProvider) Scheme() AuthenticationScheme { return SchemeAPIKey }

func (p *APIKeyAuthProvider) AuthenticationHeaders(_ context.Context) (*HeadersResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.key == "" {
		return nil, fmt.Errorf("%w: api key has been cleared", errors.ErrInvalidCredentials)
	}
	return AuthorizedResult(map[string]string{p.header: p.key}), nil
}

// HandleAuthenticationChallenge re-offers the configured key. A static
// key cannot be rotated here, so a second rejection is the caller's to
// handle.
func (p *APIKeyAuthProvider) HandleAuthenticationChallenge(ctx context.Context, _ *AuthenticationChallenge) (*HeadersResult, error) {
	return p.AuthenticationHeaders(ctx)
}

func (p *APIKeyAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key != ""
}

func (p *APIKeyAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.key = ""
}

// BasicAuthProvider performs HTTP Basic authentication with fixed
// credentials.
type BasicAuthProvider struct {
	mu       sync.RWMutex
	username string
	password string
}

// NewBasicAuthProvider builds a provider for HTTP Basic authentication.
func NewBasicAuthProvider(username, password string) (*BasicAuthProvider, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is empty", errors.ErrInvalidCredentials)
	}
	return &BasicAuthProvider{username: username, password: password}, nil
}

func (p *BasicAuthProvider) Scheme() AuthenticationScheme { return SchemeBasic }

func (p *BasicAuthProvider) AuthenticationHeaders(_ context.Context) (*HeadersResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.username == "" {
		return nil, fmt.Errorf("%w: credentials have been cleared", errors.ErrInvalidCredentials)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password))
	return AuthorizedResult(map[string]string{"Authorization": "Basic " + encoded}), nil
}

func (p *BasicAuthProvider) HandleAuthenticationChallenge(ctx context.Context, _ *AuthenticationChallenge) (*HeadersResult, error) {
	return p.AuthenticationHeaders(ctx)
}

func (p *BasicAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.username != ""
}

func (p *BasicAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.username = ""
	p.password = ""
}

// BearerTokenRefreshFunc obtains a replacement bearer token after the
// current one is rejected.
type BearerTokenRefreshFunc func(ctx context.Context) (string, error)

// BearerAuthProvider attaches a bearer token, optionally replacing it
// through a refresh callback when the server rejects it.
type BearerAuthProvider struct {
	mu      sync.RWMutex
	token   string
	refresh BearerTokenRefreshFunc
}

// NewBearerAuthProvider builds a provider for a pre-issued bearer token.
// refresh may be nil, in which case a challenge is terminal.
func NewBearerAuthProvider(token string, refresh BearerTokenRefreshFunc) (*BearerAuthProvider, error) {
	if token == "" && refresh == nil {
		return nil, fmt.Errorf("%w: bearer token is empty and no refresh callback is set", errors.ErrInvalidCredentials)
	}
	return &BearerAuthProvider{token: token, refresh: refresh}, nil
}

func (p *BearerAuthProvider) Scheme() AuthenticationScheme { return SchemeBearer }

func (p *BearerAuthProvider) AuthenticationHeaders(ctx context.Context) (*HeadersResult, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		return p.refreshToken(ctx, "")
	}
	return AuthorizedResult(map[string]string{"Authorization": "Bearer " + token}), nil
}

// HandleAuthenticationChallenge replaces the rejected token via the
// refresh callback. Without a callback the rejection is permanent.
func (p *BearerAuthProvider) HandleAuthenticationChallenge(ctx context.Context, _ *AuthenticationChallenge) (*HeadersResult, error) {
	if p.refresh == nil {
		return nil, fmt.Errorf("%w: bearer token rejected and no refresh callback is set", errors.ErrInvalidCredentials)
	}
	p.mu.RLock()
	stale := p.token
	p.mu.RUnlock()
	return p.refreshToken(ctx, stale)
}

// refreshToken replaces the stale token through the callback. The mutex
// is held across the callback so concurrent callers coalesce on a single
// refresh; a caller that arrives after the token was already replaced
// reuses it without invoking the callback again.
func (p *BearerAuthProvider) refreshToken(ctx context.Context, stale string) (*HeadersResult, error) {
	if p.refresh == nil {
		return nil, fmt.Errorf("%w: bearer token is empty", errors.ErrInvalidCredentials)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.token != stale {
		return AuthorizedResult(map[string]string{"Authorization": "Bearer " + p.token}), nil
	}
	token, err := p.refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bearer token refresh: %v", errors.ErrAuthenticationFailed, err)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: bearer token refresh returned an empty token", errors.ErrAuthenticationFailed)
	}
	p.token = token
	return AuthorizedResult(map[string]string{"Authorization": "Bearer " + token}), nil
}

func (p *BearerAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != ""
}

func (p *BearerAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}
