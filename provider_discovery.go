// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpconnect/authkit/internal/errors"
	"github.com/mcpconnect/authkit/internal/oauth"
	"github.com/mcpconnect/authkit/internal/oauth/pkce"
)

// OAuthDiscoveryConfig configures a provider that locates its
// authorization server at runtime, starting from the resource server.
type OAuthDiscoveryConfig struct {
	// ResourceServerURL is the server requiring authentication. It also
	// becomes the RFC 8707 resource parameter after canonicalization.
	ResourceServerURL string
	// ResourceType selects the well-known protected-resource suffix, for
	// example "mcp". Optional.
	ResourceType string
	// AuthorizationServerURL short-circuits discovery when the issuer is
	// already known. Discovery still runs if this issuer fails.
	AuthorizationServerURL string
	// ClientID is the pre-registered client identifier, used when the
	// server offers no registration endpoint or registration fails.
	ClientID string
	// ClientSecret is empty for public clients.
	ClientSecret string
	// RedirectURI receives the authorization callback.
	RedirectURI string
	// Scope is the preferred scope, reconciled against the server's
	// advertised scopes before use.
	Scope string
	// ClientName is sent with dynamic registration requests.
	ClientName string
	// InitialAccessToken authorizes registration at protected
	// registration endpoints. Optional.
	InitialAccessToken string
}

// OAuthDiscoveryAuthProvider discovers the authorization server from the
// resource server, registers a client when the server supports it, and
// then drives the PKCE authorization-code flow.
type OAuthDiscoveryAuthProvider struct {
	mu       sync.RWMutex
	cfg      OAuthDiscoveryConfig
	resource string
	opts     providerOptions

	metadata     *oauth.ServerMetadata
	registration *oauth.ClientRegistration
	pending      *pkce.Pair
	pendingState string
	chosenScope  string
	tokens       *TokenSet
}

// NewOAuthDiscoveryAuthProvider builds a discovery-driven OAuth
// provider.
func NewOAuthDiscoveryAuthProvider(cfg OAuthDiscoveryConfig, opts ...ProviderOption) (*OAuthDiscoveryAuthProvider, error) {
	if cfg.ResourceServerURL == "" {
		return nil, fmt.Errorf("%w: resource server url is required", errors.ErrAuthenticationFailed)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect uri is required", errors.ErrAuthenticationFailed)
	}

	resource, err := oauth.CanonicalizeResource(cfg.ResourceServerURL)
	if err != nil {
		return nil, err
	}

	return &OAuthDiscoveryAuthProvider{
		cfg:      cfg,
		resource: resource,
		opts:     applyProviderOptions(opts),
	}, nil
}

func (p *OAuthDiscoveryAuthProvider) Scheme() AuthenticationScheme { return SchemeOAuth }

func (p *OAuthDiscoveryAuthProvider) AuthenticationHeaders(ctx context.Context) (*HeadersResult, error) {
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

	payload, err := p.startFlowLocked(ctx, nil)
	if err != nil {
		return nil, err
	}
	return ManualFlowResult(payload), nil
}

// HandleAuthenticationChallenge refreshes when a refresh token exists,
// then falls back to rediscovering the authorization server from the
// challenge and restarting the flow.
func (p *OAuthDiscoveryAuthProvider) HandleAuthenticationChallenge(ctx context.Context, challenge *AuthenticationChallenge) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens != nil && p.tokens.RefreshToken != "" {
		if err := p.refreshLocked(ctx); err == nil {
			return AuthorizedResult(p.tokens.AuthorizationHeaders()), nil
		}
		p.tokens = nil
	}

	// The server rejected our credentials; cached metadata may be stale.
	p.metadata = nil

	payload, err := p.startFlowLocked(ctx, challenge)
	if err != nil {
		return nil, err
	}
	return ManualFlowResult(payload), nil
}

// startFlowLocked discovers the authorization server, negotiates the
// scope, registers the client when possible and assembles a fresh
// authorization URL.
func (p *OAuthDiscoveryAuthProvider) startFlowLocked(ctx context.Context, challenge *oauth.Challenge) (*ManualFlowPayload, error) {
	if p.metadata == nil {
		start := time.Now()
		metadata, err := oauth.DiscoverAuthorizationServer(ctx, oauth.DiscoverOptions{
			ResourceServerURL:   p.cfg.ResourceServerURL,
			ResourceType:        p.cfg.ResourceType,
			PreconfiguredIssuer: p.cfg.AuthorizationServerURL,
			Challenge:           challenge,
			FetchFn:             p.opts.fetch,
			Logger:              p.opts.logger,
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

	p.registerClientLocked(ctx)
	clientID, _ := p.clientCredentialsLocked()
	if clientID == "" {
		return nil, fmt.Errorf("%w: no client id configured and dynamic registration unavailable", errors.ErrAuthenticationFailed)
	}

	pair, err := pkce.Generate()
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()

	authURL, err := buildAuthorizationURL(p.metadata.AuthorizationEndpoint, authorizationURLParams{
		ClientID:    clientID,
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
	p.opts.logger.Infof("authorization required at %s, flow prepared for issuer %s",
		p.cfg.ResourceServerURL, p.metadata.Issuer)

	return &ManualFlowPayload{
		AuthorizationURL: authURL,
		State:            state,
		RedirectURI:      p.cfg.RedirectURI,
		ClientID:         clientID,
		Scope:            p.chosenScope,
		Resource:         p.resource,
	}, nil
}

// registerClientLocked attempts dynamic registration when the server
// advertises an endpoint. Failure is not fatal: the provider falls back
// to the configured client id.
func (p *OAuthDiscoveryAuthProvider) registerClientLocked(ctx context.Context) {
	if p.registration != nil || p.metadata.RegistrationEndpoint == "" {
		return
	}

	client := oauth.NewRegistrationClient(p.metadata.RegistrationEndpoint, p.opts.fetch)
	request := oauth.MCPClientRegistration([]string{p.cfg.RedirectURI}, p.clientName(), p.chosenScope)

	start := time.Now()
	registration, err := client.Register(ctx, request, p.cfg.InitialAccessToken, "")
	observeFlow(ctx, p.opts.recorder, OperationRegistration, start, err)
	if err != nil {
		if p.cfg.ClientID != "" {
			p.opts.logger.Warnf("dynamic client registration failed, continuing with configured client %s: %v",
				p.cfg.ClientID, err)
		} else {
			p.opts.logger.Warnf("dynamic client registration failed: %v", err)
		}
		return
	}
	p.registration = registration
	p.opts.logger.Infof("registered client %s at %s", registration.ClientID, p.metadata.RegistrationEndpoint)
}

func (p *OAuthDiscoveryAuthProvider) clientName() string {
	if p.cfg.ClientName != "" {
		return p.cfg.ClientName
	}
	return "authkit client"
}

// clientCredentialsLocked prefers dynamically registered credentials
// over configured ones.
func (p *OAuthDiscoveryAuthProvider) clientCredentialsLocked() (string, string) {
	if p.registration != nil {
		return p.registration.ClientID, p.registration.ClientSecret
	}
	return p.cfg.ClientID, p.cfg.ClientSecret
}

// CompleteAuthorizationFlow exchanges the callback code for tokens. The
// state must match the value issued with the authorization URL.
func (p *OAuthDiscoveryAuthProvider) CompleteAuthorizationFlow(ctx context.Context, code, state string) error {
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

func (p *OAuthDiscoveryAuthProvider) refreshLocked(ctx context.Context) error {
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

func (p *OAuthDiscoveryAuthProvider) tokenEndpointLocked() oauth.TokenEndpointOptions {
	clientID, clientSecret := p.clientCredentialsLocked()
	opts := oauth.TokenEndpointOptions{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		FetchFn:      p.opts.fetch,
	}
	if p.metadata != nil {
		opts.TokenEndpoint = p.metadata.TokenEndpoint
		opts.SupportedMethods = p.metadata.TokenEndpointAuthMethodsSupported
	}
	return opts
}

func (p *OAuthDiscoveryAuthProvider) IsAuthenticationValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokens.Valid()
}

func (p *OAuthDiscoveryAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = nil
	p.metadata = nil
	p.registration = nil
	p.pending = nil
	p.pendingState = ""
	p.chosenScope = ""
}
