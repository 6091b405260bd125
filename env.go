// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"github.com/joeshaw/envdecode"
)

// EnvConfig mirrors Config for environment-based bootstrap. All
// variables are optional; the factory validates the combination.
type EnvConfig struct {
	Scheme       string `env:"MCPAUTH_SCHEME,default=oauth"`
	APIKey       string `env:"MCPAUTH_API_KEY"`
	APIKeyHeader string `env:"MCPAUTH_API_KEY_HEADER"`
	Username     string `env:"MCPAUTH_USERNAME"`
	Password     string `env:"MCPAUTH_PASSWORD"`
	BearerToken  string `env:"MCPAUTH_BEARER_TOKEN"`

	TokenEndpoint          string `env:"MCPAUTH_TOKEN_ENDPOINT"`
	AccessToken            string `env:"MCPAUTH_ACCESS_TOKEN"`
	RefreshToken           string `env:"MCPAUTH_REFRESH_TOKEN"`
	IssuerURL              string `env:"MCPAUTH_ISSUER_URL"`
	ResourceServerURL      string `env:"MCPAUTH_RESOURCE_SERVER_URL"`
	ResourceType           string `env:"MCPAUTH_RESOURCE_TYPE"`
	AuthorizationServerURL string `env:"MCPAUTH_AUTHORIZATION_SERVER_URL"`
	ClientID               string `env:"MCPAUTH_CLIENT_ID"`
	ClientSecret           string `env:"MCPAUTH_CLIENT_SECRET"`
	RedirectURI            string `env:"MCPAUTH_REDIRECT_URI"`
	Scope                  string `env:"MCPAUTH_SCOPE"`
	Resource               string `env:"MCPAUTH_RESOURCE"`
	ClientName             string `env:"MCPAUTH_CLIENT_NAME"`
	InitialAccessToken     string `env:"MCPAUTH_INITIAL_ACCESS_TOKEN"`
	RegistrationEndpoint   string `env:"MCPAUTH_REGISTRATION_ENDPOINT"`
}

// ConfigFromEnv reads provider configuration from MCPAUTH_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	var env EnvConfig
	if err := envdecode.Decode(&env); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, err
	}
	return env.Config(), nil
}

// Config converts the decoded environment into a factory Config.
func (e EnvConfig) Config() Config {
	return Config{
		Scheme:       e.Scheme,
		APIKey:       e.APIKey,
		APIKeyHeader: e.APIKeyHeader,
		Username:     e.Username,
		Password:     e.Password,
		BearerToken:  e.BearerToken,
		OAuth: OAuthProviderConfig{
			TokenEndpoint:          e.TokenEndpoint,
			AccessToken:            e.AccessToken,
			RefreshToken:           e.RefreshToken,
			IssuerURL:              e.IssuerURL,
			ResourceServerURL:      e.ResourceServerURL,
			ResourceType:           e.ResourceType,
			AuthorizationServerURL: e.AuthorizationServerURL,
			ClientID:               e.ClientID,
			ClientSecret:           e.ClientSecret,
			RedirectURI:            e.RedirectURI,
			Scope:                  e.Scope,
			Resource:               e.Resource,
			ClientName:             e.ClientName,
			InitialAccessToken:     e.InitialAccessToken,
			RegistrationEndpoint:   e.RegistrationEndpoint,
		},
	}
}

// NewProviderFromEnv builds a provider from MCPAUTH_* environment
// variables.
func NewProviderFromEnv(opts ...ProviderOption) (AuthenticationProvider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewProvider(cfg, opts...)
}
