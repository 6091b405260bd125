// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpconnect/authkit/internal/errors"
	"github.com/mcpconnect/authkit/internal/oauth"
	"github.com/mcpconnect/authkit/internal/oauth/pkce"
)

// PKCEOAuthConfig configures a two-phase authorization-code flow with
// PKCE against a known issuer.
type PKCEOAuthConfig struct {
	// IssuerURL is the authorization server issuer identifier.
	IssuerURL string
	// ClientID identifies the client, pre-registered at the issuer.
	ClientID string
	// ClientSecret is empty for public clients.
	ClientSecret string
	// RedirectURI receives the authorization callback.
	RedirectURI string
	// Scope is the preferred scope, reconciled against the server's
	// advertised scopes before use.
	Scope string
	// Resource is the target resource URI, canonicalized and sent as the
	// RFC 8707 resource parameter when non-empty.
	Resource string
}

// PKCEOAuthAuthProvider drives the OAuth 2.1 authorization-code flow
// with PKCE. Authorization is user-interactive: AuthenticationHeaders
// reports a manual flow until CompleteAuthorizationFlow delivers the
// callback code.
type PKCEOAuthAuthProvider struct {
	mu       sync.RWMutex
	cfg      PKCEOAuthConfig
	resource string
	opts     providerOptions

	metadata     *oauth.ServerMetadata
	pending      *pkce.Pair
	pendingState string
	chosenScope  string
	tokens       *TokenSet
}

// NewPKCEOAuthAuthProvider builds a PKCE provider for a known issuer.
func NewPKCEOAuthAuthProvider(cfg PKCEOAuthConfig, opts ...ProviderOption) (*PKCEOAuthAuthProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("%w: issuer url is required", errors.ErrInvalidIssuerURL)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", errors.ErrAuthenticationFailed)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect uri is required", errors.ErrAuthenticationFailed)
	}

	resource := ""
	if cfg.Resource != "" {
		canonical, err := oauth.CanonicalizeResource(cfg.Resource)
		if err != nil {
			return nil, err
		}
		resource = canonical
	}

	return &PKCEOAuthAuthProvider{
		cfg:      cfg,
		resource: resource,
		opts:     applyProviderOptions(opts),
	}, nil
}

func (p *PKCEOAuthAuthProvider) Scheme() AuthenticationScheme { return SchemeOAuth }

func (p *PKCEOAuthAuthProvider) AuthenticationHeaders(ctx context.Context) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens.Valid() {
		return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
	}
	if p.tokens != nil && p.tokens.RefreshToken != "" {
		if err := p.refreshLocked(ctx); err == nil {
			return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
		} else if !stderrors.Is(err, errors.ErrInvalidGrant) {
			return nil, err
		}
		p.tokens = nil
	}

	payload, err := p.startFlowLocked(ctx)
	if err != nil {
		return nil, err
	}
	return ManualFlowResult(payload), nil
}

// StartAuthorizationFlow prepares a fresh authorization URL without
// waiting for a headers request.
func (p *PKCEOAuthAuthProvider) StartAuthorizationFlow(ctx context.Context) (*ManualFlowPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startFlowLocked(ctx)
}

func (p *PKCEOAuthAuthProvider) startFlowLocked(ctx context.Context) (*ManualFlowPayload, error) {
	if p.metadata == nil {
		start := time.Now()
		metadata, err := oauth.DiscoverServerMetadata(ctx, p.cfg.IssuerURL, &oauth.DiscoveryOptions{
			FetchFn: p.opts.fetch,
		})
		observeFlow(ctx, p.opts.recorder, OperationDiscovery, start, err)
		if err != nil {
			return nil, err
		}
		if err := metadata.ValidatePKCESupport(); err != nil {
			return nil, err
		}
		p.metadata = metadata
	}

	p.chosenScope = NegotiateScope(p.cfg.Scope, p.metadata.ScopesSupported)

	pair, err := pkce.Generate()
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()

	authURL, err := buildAuthorizationURL(p.metadata.AuthorizationEndpoint, authorizationURLParams{
		ClientID:    p.cfg.ClientID,
		RedirectURI: p.cfg.RedirectURI,
		Scope:       p.chosenScope,
		State:       state,
		Resource:    p.resource,
		PKCE:        pair,
	})
	if err != nil {
		return nil, err
	}

	p.pending = pair
	p.pendingState = state
	p.opts.logger.Debugf("authorization flow prepared for issuer %s", p.metadata.Issuer)

	return &ManualFlowPayload{
		AuthorizationURL: authURL,
		State:            state,
		RedirectURI:      p.cfg.RedirectURI,
		ClientID:         p.cfg.ClientID,
		Scope:            p.chosenScope,
		Resource:         p.resource,
	}, nil
}

// CompleteAuthorizationFlow exchanges the callback code for tokens. The
// state must match the value issued with the authorization URL.
func (p *PKCEOAuthAuthProvider) CompleteAuthorizationFlow(ctx context.Context, code, state string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return fmt.Errorf("%w: no authorization flow in progress", errors.ErrAuthenticationFailed)
	}
	if state != p.pendingState {
		return fmt.Errorf("%w: authorization state mismatch", errors.ErrAuthenticationFailed)
	}

	start := time.Now()
	resp, err := oauth.ExchangeAuthorizationCode(ctx, p.tokenEndpointLocked(), oauth.ExchangeRequest{
		Code:         code,
		CodeVerifier: p.pending.CodeVerifier,
		RedirectURI:  p.cfg.RedirectURI,
		Resource:     p.resource,
	})
	observeFlow(ctx, p.opts.recorder, OperationExchange, start, err)
	if err != nil {
		return err
	}

	tokens, err := NewTokenSet(resp)
	if err != nil {
		return err
	}
	p.tokens = tokens
	p.pending = nil
	p.pendingState = ""
	return nil
}

// HandleAuthenticationChallenge refreshes when possible, otherwise
// restarts the authorization flow.
func (p *PKCEOAuthAuthProvider) HandleAuthenticationChallenge(ctx context.Context, _ *AuthenticationChallenge) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens != nil && p.tokens.RefreshToken != "" {
		if err := p.refreshLocked(ctx); err == nil {
			return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
		}
		p.tokens = nil
	}

	payload, err := p.startFlowLocked(ctx)
	if err != nil {
		return nil, err
	}
	return ManualFlowResult(payload), nil
}

func (p *PKCEOAuthAuthProvider) refreshLocked(ctx context.Context) error {
	start := time.Now()
	resp, err := oauth.RefreshAccessToken(ctx, p.tokenEndpointLocked(), oauth.RefreshRequest{
		RefreshToken: p.tokens.RefreshToken,
		Scope:        p.chosenScope,
		Resource:     p.resource,
	})
	observeFlow(ctx, p.opts.recorder, OperationRefresh, start, err)
	if err != nil {
		p.opts.logger.Warnf("token refresh failed: %v", err)
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

func (p *PKCEOAuthAuthProvider) tokenEndpointLocked() oauth.TokenEndpointOptions {
	opts := oauth.TokenEndpointOptions{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		FetchFn:      p.opts.fetch,
	}
	if p.metadata != nil {
		opts.TokenEndpoint = p.metadata.TokenEndpoint
		opts.SupportedMethods = p.metadata.TokenEndpointAuthMethodsSupported
	}
	return opts
}

func (p *PKCEOAuthAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokens.Valid()
}

func (p *PKCEOAuthAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = nil
	p.metadata = nil
	p.pending = nil
	p.pendingState = ""
	p.chosenScope = ""
}

// authorizationURLParams collects the query parameters of an
// authorization request.
type authorizationURLParams struct {
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Resource    string
	PKCE        *pkce.Pair
}

// buildAuthorizationURL assembles the authorization request URL,
// preserving any query parameters already present on the endpoint.
func buildAuthorizationURL(endpoint string, params authorizationURLParams) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid authorization endpoint %q: %v", errors.ErrInvalidMetadataResponse, endpoint, err)
	}

	query := u.Query()
	query.Set("response_type", "code")
	query.Set("client_id", params.ClientID)
	query.Set("redirect_uri", params.RedirectURI)
	query.Set("state", params.State)
	query.Set("code_challenge", params.PKCE.CodeChallenge)
	query.Set("code_challenge_method", params.PKCE.Method)
	if params.Scope != "" {
		query.Set("scope", params.Scope)
		if scopeContains(params.Scope, "offline_access") {
			query.Set("prompt", "consent")
		}
	}
	u.RawQuery = query.Encode()

	if params.Resource != "" {
		u.RawQuery += "&resource=" + oauth.ResourceRequestParameter(params.Resource)
	}
	return u.String(), nil
}

func scopeContains(scope, member string) bool {
	for _, s := range strings.Fields(scope) {
		if s == member {
			return true
		}
	}
	return false
}
