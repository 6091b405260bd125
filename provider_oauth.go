// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcpconnect/authkit/internal/errors"
	"github.com/mcpconnect/authkit/internal/oauth"
)

// OAuthConfig configures a provider that keeps pre-issued OAuth tokens
// alive against a known token endpoint.
type OAuthConfig struct {
	// TokenEndpoint is the authorization server's token endpoint.
	TokenEndpoint string
	// ClientID identifies the client at the token endpoint.
	ClientID string
	// ClientSecret is empty for public clients.
	ClientSecret string
	// AccessToken is the current access token, may be empty when only a
	// refresh token is available.
	AccessToken string
	// RefreshToken enables refreshing when the access token expires.
	RefreshToken string
	// Scope is sent on refresh requests when non-empty.
	Scope string
	// Resource is the target resource URI, canonicalized and sent as the
	// RFC 8707 resource parameter when non-empty.
	Resource string
}

// OAuthAuthProvider refreshes pre-issued tokens against a fixed token
// endpoint. It never starts an authorization flow; when the refresh
// token is exhausted the caller must re-provision credentials.
type OAuthAuthProvider struct {
	mu       sync.RWMutex
	endpoint oauth.TokenEndpointOptions
	scope    string
	resource string
	tokens   *TokenSet
	opts     providerOptions
}

// NewOAuthAuthProvider builds a refresh-only OAuth provider.
func NewOAuthAuthProvider(cfg OAuthConfig, opts ...ProviderOption) (*OAuthAuthProvider, error) {
	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: token endpoint is required", errors.ErrAuthenticationFailed)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", errors.ErrAuthenticationFailed)
	}
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: neither access token nor refresh token configured", errors.ErrInvalidCredentials)
	}

	resource := ""
	if cfg.Resource != "" {
		canonical, err := oauth.CanonicalizeResource(cfg.Resource)
		if err != nil {
			return nil, err
		}
		resource = canonical
	}

	options := applyProviderOptions(opts)
	p := &OAuthAuthProvider{
		endpoint: oauth.TokenEndpointOptions{
			TokenEndpoint: cfg.TokenEndpoint,
			ClientID:      cfg.ClientID,
			ClientSecret:  cfg.ClientSecret,
			FetchFn:       options.fetch,
		},
		scope:    cfg.Scope,
		resource: resource,
		opts:     options,
	}

	if cfg.AccessToken != "" {
		p.tokens = &TokenSet{
			AccessToken:  cfg.AccessToken,
			TokenType:    "Bearer",
			RefreshToken: cfg.RefreshToken,
			Scope:        cfg.Scope,
			ExpiresAt:    jwtExpiry(cfg.AccessToken),
		}
	} else {
		p.tokens = &TokenSet{RefreshToken: cfg.RefreshToken, Scope: cfg.Scope}
	}
	return p, nil
}

func (p *OAuthAuthProvider) Scheme() AuthenticationScheme { return SchemeOAuth }

func (p *OAuthAuthProvider) AuthenticationHeaders(ctx context.Context) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens.Valid() {
		return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
	}
	if err := p.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
}

// HandleAuthenticationChallenge refreshes once. A failure here means the
// stored credentials are no longer honored by the server.
func (p *OAuthAuthProvider) HandleAuthenticationChallenge(ctx context.Context, _ *AuthenticationChallenge) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
}

func (p *OAuthAuthProvider) refreshLocked(ctx context.Context) error {
	if p.tokens == nil || p.tokens.RefreshToken == "" {
		return fmt.Errorf("%w: access token expired and no refresh token is available", errors.ErrAuthenticationExpired)
	}

	start := time.Now()
	resp, err := oauth.RefreshAccessToken(ctx, p.endpoint, oauth.RefreshRequest{
		RefreshToken: p.tokens.RefreshToken,
		Scope:        p.scope,
		Resource:     p.resource,
	})
	observeFlow(ctx, p.opts.recorder, OperationRefresh, start, err)
	if err != nil {
		p.opts.logger.Warnf("token refresh against %s failed: %v", p.endpoint.TokenEndpoint, err)
		return err
	}

	tokens, err := NewTokenSet(resp)
	if err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = p.tokens.RefreshToken
	}
	p.tokens = tokens
	return nil
}

func (p *OAuthAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokens.Valid()
}

func (p *OAuthAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = nil
}
