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

// CredentialStore persists dynamically registered client credentials
// across provider instances.
type CredentialStore = oauth.CredentialStore

// ClientRegistration is the persisted result of a dynamic client
// registration.
type ClientRegistration = oauth.ClientRegistration

// NewInMemoryCredentialStore returns a process-local credential store.
func NewInMemoryCredentialStore() CredentialStore {
	return oauth.NewInMemoryCredentialStore()
}

// DynamicRegistrationConfig configures a provider that obtains its own
// client credentials through RFC 7591 dynamic registration.
type DynamicRegistrationConfig struct {
	// RegistrationEndpoint is the server's registration endpoint. When
	// empty, the endpoint comes from discovered server metadata.
	RegistrationEndpoint string
	// ResourceServerURL is the server requiring authentication.
	ResourceServerURL string
	// ResourceType selects the well-known protected-resource suffix.
	ResourceType string
	// AuthorizationServerURL short-circuits discovery when known.
	AuthorizationServerURL string
	// RedirectURIs registered for the client. The first entry is used
	// for authorization flows.
	RedirectURIs []string
	// ClientName is sent with the registration request.
	ClientName string
	// Scope is the preferred scope.
	Scope string
	// InitialAccessToken authorizes registration at protected
	// registration endpoints. Optional.
	InitialAccessToken string
}

// DynamicRegistrationAuthProvider registers a client before delegating
// authentication to a discovery provider built around the issued
// credentials. Registrations are cached in the credential store and
// reused while the issued secret remains valid.
type DynamicRegistrationAuthProvider struct {
	mu          sync.Mutex
	cfg         DynamicRegistrationConfig
	store       CredentialStore
	opts        providerOptions
	optionFuncs []ProviderOption

	registration *oauth.ClientRegistration
	inner        *OAuthDiscoveryAuthProvider
}

// NewDynamicRegistrationAuthProvider builds a dynamic-registration
// provider. store may be nil, in which case registrations live only for
// the lifetime of the provider.
func NewDynamicRegistrationAuthProvider(cfg DynamicRegistrationConfig, store CredentialStore, opts ...ProviderOption) (*DynamicRegistrationAuthProvider, error) {
	if cfg.ResourceServerURL == "" {
		return nil, fmt.Errorf("%w: resource server url is required", errors.ErrAuthenticationFailed)
	}
	if len(cfg.RedirectURIs) == 0 {
		return nil, fmt.Errorf("%w: at least one redirect uri is required", errors.ErrAuthenticationFailed)
	}
	for _, uri := range cfg.RedirectURIs {
		if uri == "" {
			return nil, fmt.Errorf("%w: redirect uri must not be empty", errors.ErrAuthenticationFailed)
		}
	}

	return &DynamicRegistrationAuthProvider{
		cfg:         cfg,
		store:       store,
		opts:        applyProviderOptions(opts),
		optionFuncs: opts,
	}, nil
}

func (p *DynamicRegistrationAuthProvider) Scheme() AuthenticationScheme { return SchemeOAuth }

func (p *DynamicRegistrationAuthProvider) AuthenticationHeaders(ctx context.Context) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureInnerLocked(ctx); err != nil {
		return nil, err
	}
	return p.inner.AuthenticationHeaders(ctx)
}

func (p *DynamicRegistrationAuthProvider) HandleAuthenticationChallenge(ctx context.Context, challenge *AuthenticationChallenge) (*HeadersResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureInnerLocked(ctx); err != nil {
		return nil, err
	}
	return p.inner.HandleAuthenticationChallenge(ctx, challenge)
}

// CompleteAuthorizationFlow forwards the authorization callback to the
// underlying discovery provider.
func (p *DynamicRegistrationAuthProvider) CompleteAuthorizationFlow(ctx context.Context, code, state string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inner == nil {
		return fmt.Errorf("%w: no authorization flow in progress", errors.ErrAuthenticationFailed)
	}
	return p.inner.CompleteAuthorizationFlow(ctx, code, state)
}

// ReRegisterClient discards the cached registration and registers a
// fresh client, for example after the server revoked the old one.
func (p *DynamicRegistrationAuthProvider) ReRegisterClient(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		p.store.ClearClientRegistration()
	}
	p.registration = nil
	p.inner = nil
	return p.ensureInnerLocked(ctx)
}

// ensureInnerLocked resolves client credentials, registering when no
// usable cached registration exists, and builds the delegate provider.
func (p *DynamicRegistrationAuthProvider) ensureInnerLocked(ctx context.Context) error {
	if p.inner != nil {
		return nil
	}

	registration := p.registration
	if registration == nil && p.store != nil {
		registration = p.store.ClientRegistration()
		if registration != nil && !oauth.RegistrationUsable(registration, time.Now()) {
			p.opts.logger.Infof("cached client registration for %s expired, re-registering", registration.ClientID)
			p.store.ClearClientRegistration()
			registration = nil
		}
	}

	if registration == nil {
		var err error
		registration, err = p.registerLocked(ctx)
		if err != nil {
			return err
		}
		if p.store != nil {
			p.store.SaveClientRegistration(registration)
		}
	}
	p.registration = registration

	inner, err := NewOAuthDiscoveryAuthProvider(OAuthDiscoveryConfig{
		ResourceServerURL:      p.cfg.ResourceServerURL,
		ResourceType:           p.cfg.ResourceType,
		AuthorizationServerURL: p.cfg.AuthorizationServerURL,
		ClientID:               registration.ClientID,
		ClientSecret:           registration.ClientSecret,
		RedirectURI:            p.cfg.RedirectURIs[0],
		Scope:                  p.cfg.Scope,
		ClientName:             p.cfg.ClientName,
	}, p.optionFuncs...)
	if err != nil {
		return err
	}
	p.inner = inner
	return nil
}

// registerLocked performs the registration request. Unlike the discovery
// provider's opportunistic registration, failure here is fatal: this
// provider has no configured client id to fall back to.
func (p *DynamicRegistrationAuthProvider) registerLocked(ctx context.Context) (*oauth.ClientRegistration, error) {
	endpoint := p.cfg.RegistrationEndpoint
	if endpoint == "" {
		metadata, err := p.discoverMetadataLocked(ctx)
		if err != nil {
			return nil, err
		}
		if metadata.RegistrationEndpoint == "" {
			return nil, fmt.Errorf("%w: server %s advertises no registration endpoint",
				errors.ErrRegistrationNotSupported, metadata.Issuer)
		}
		endpoint = metadata.RegistrationEndpoint
	}

	client := oauth.NewRegistrationClient(endpoint, p.opts.fetch)
	request := oauth.MCPClientRegistration(p.cfg.RedirectURIs, p.clientName(), p.cfg.Scope)

	start := time.Now()
	registration, err := client.Register(ctx, request, p.cfg.InitialAccessToken, "")
	observeFlow(ctx, p.opts.recorder, OperationRegistration, start, err)
	if err != nil {
		return nil, err
	}
	p.opts.logger.Infof("registered client %s at %s", registration.ClientID, endpoint)
	return registration, nil
}

func (p *DynamicRegistrationAuthProvider) discoverMetadataLocked(ctx context.Context) (*oauth.ServerMetadata, error) {
	start := time.Now()
	metadata, err := oauth.DiscoverAuthorizationServer(ctx, oauth.DiscoverOptions{
		ResourceServerURL:   p.cfg.ResourceServerURL,
		ResourceType:        p.cfg.ResourceType,
		PreconfiguredIssuer: p.cfg.AuthorizationServerURL,
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
	return metadata, nil
}

func (p *DynamicRegistrationAuthProvider) clientName() string {
	if p.cfg.ClientName != "" {
		return p.cfg.ClientName
	}
	return "authkit client"
}

func (p *DynamicRegistrationAuthProvider) IsAuthenticationValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner == nil {
		return false
	}
	return p.inner.IsAuthenticationValid()
}

// Cleanup releases in-memory state. A persisted registration stays in
// the credential store for reuse.
func (p *DynamicRegistrationAuthProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner != nil {
		p.inner.Cleanup()
	}
	p.inner = nil
	p.registration = nil
}
