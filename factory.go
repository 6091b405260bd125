// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"fmt"

	"github.com/mcpconnect/authkit/internal/errors"
)

// Config selects and configures a provider variant. Scheme picks the
// family; for OAuth the populated fields of OAuth select the flow.
type Config struct {
	// Scheme is one of "apikey", "basic", "bearer" or "oauth".
	Scheme string

	// APIKey fields.
	APIKey       string
	APIKeyHeader string

	// Basic fields.
	Username string
	Password string

	// Bearer fields.
	BearerToken   string
	BearerRefresh BearerTokenRefreshFunc

	// OAuth fields.
	OAuth OAuthProviderConfig
}

// OAuthProviderConfig covers every OAuth flow variant. Which variant is
// built depends on which fields are set, checked in this order:
//
//  1. TokenEndpoint with a token: refresh-only provider.
//  2. No ClientID: dynamic registration, delegating to discovery.
//  3. ResourceServerURL: runtime discovery with PKCE.
//  4. IssuerURL: PKCE against the known issuer.
type OAuthProviderConfig struct {
	// Refresh-only flow.
	TokenEndpoint string
	AccessToken   string
	RefreshToken  string

	// Known-issuer PKCE flow.
	IssuerURL string

	// Discovery flow.
	ResourceServerURL      string
	ResourceType           string
	AuthorizationServerURL string

	// Client identity, shared across flows.
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	Resource     string

	// Dynamic registration.
	ClientName           string
	InitialAccessToken   string
	RegistrationEndpoint string
	CredentialStore      CredentialStore
}

// NewProvider builds the provider variant selected by cfg.
func NewProvider(cfg Config, opts ...ProviderOption) (AuthenticationProvider, error) {
	scheme := ParseAuthenticationScheme(cfg.Scheme)
	switch scheme {
	case SchemeAPIKey:
		return NewAPIKeyAuthProvider(cfg.APIKey, cfg.APIKeyHeader)
	case SchemeBasic:
		return NewBasicAuthProvider(cfg.Username, cfg.Password)
	case SchemeBearer:
		return NewBearerAuthProvider(cfg.BearerToken, cfg.BearerRefresh)
	case SchemeOAuth:
		return newOAuthProvider(cfg.OAuth, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnsupportedAuthScheme, cfg.Scheme)
	}
}

func newOAuthProvider(cfg OAuthProviderConfig, opts ...ProviderOption) (AuthenticationProvider, error) {
	switch {
	case cfg.TokenEndpoint != "" && (cfg.AccessToken != "" || cfg.RefreshToken != ""):
		return NewOAuthAuthProvider(OAuthConfig{
			TokenEndpoint: cfg.TokenEndpoint,
			ClientID:      cfg.ClientID,
			ClientSecret:  cfg.ClientSecret,
			AccessToken:   cfg.AccessToken,
			RefreshToken:  cfg.RefreshToken,
			Scope:         cfg.Scope,
			Resource:      cfg.Resource,
		}, opts...)

	case cfg.ClientID == "":
		if cfg.ResourceServerURL == "" && cfg.RegistrationEndpoint == "" {
			return nil, fmt.Errorf("%w: oauth configuration needs a client id, a resource server url or a registration endpoint",
				errors.ErrAuthenticationFailed)
		}
		var redirectURIs []string
		if cfg.RedirectURI != "" {
			redirectURIs = []string{cfg.RedirectURI}
		}
		return NewDynamicRegistrationAuthProvider(DynamicRegistrationConfig{
			RegistrationEndpoint:   cfg.RegistrationEndpoint,
			ResourceServerURL:      cfg.ResourceServerURL,
			ResourceType:           cfg.ResourceType,
			AuthorizationServerURL: cfg.AuthorizationServerURL,
			RedirectURIs:           redirectURIs,
			ClientName:             cfg.ClientName,
			Scope:                  cfg.Scope,
			InitialAccessToken:     cfg.InitialAccessToken,
		}, cfg.CredentialStore, opts...)

	case cfg.ResourceServerURL != "":
		return NewOAuthDiscoveryAuthProvider(OAuthDiscoveryConfig{
			ResourceServerURL:      cfg.ResourceServerURL,
			ResourceType:           cfg.ResourceType,
			AuthorizationServerURL: cfg.AuthorizationServerURL,
			ClientID:               cfg.ClientID,
			ClientSecret:           cfg.ClientSecret,
			RedirectURI:            cfg.RedirectURI,
			Scope:                  cfg.Scope,
			ClientName:             cfg.ClientName,
			InitialAccessToken:     cfg.InitialAccessToken,
		}, opts...)

	case cfg.IssuerURL != "":
		return NewPKCEOAuthAuthProvider(PKCEOAuthConfig{
			IssuerURL:    cfg.IssuerURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scope:        cfg.Scope,
			Resource:     cfg.Resource,
		}, opts...)

	default:
		return nil, fmt.Errorf("%w: oauth configuration selects no flow variant", errors.ErrAuthenticationFailed)
	}
}
