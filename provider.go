// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"strings"

	"github.com/mcpconnect/authkit/internal/oauth"
)

// AuthenticationScheme identifies how a provider authenticates requests.
type AuthenticationScheme string

// Built-in authentication schemes. Unknown strings parse to a custom
// scheme rather than an error so transports can carry extensions.
const (
	SchemeAPIKey AuthenticationScheme = "apikey"
	SchemeBasic  AuthenticationScheme = "basic"
	SchemeBearer AuthenticationScheme = "bearer"
	SchemeOAuth  AuthenticationScheme = "oauth"
)

// ParseAuthenticationScheme maps a string to a scheme, case-insensitively.
// Unrecognized values become custom schemes.
func ParseAuthenticationScheme(s string) AuthenticationScheme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "apikey", "api-key", "api_key":
		return SchemeAPIKey
	case "basic":
		return SchemeBasic
	case "bearer":
		return SchemeBearer
	case "oauth", "oauth2":
		return SchemeOAuth
	default:
		return AuthenticationScheme(strings.ToLower(strings.TrimSpace(s)))
	}
}

// IsCustom reports whether the scheme is outside the built-in set.
func (s AuthenticationScheme) IsCustom() bool {
	switch s {
	case SchemeAPIKey, SchemeBasic, SchemeBearer, SchemeOAuth:
		return false
	}
	return true
}

// AuthenticationChallenge carries the details of a 401 response from a
// resource server, including the WWW-Authenticate header when present.
type AuthenticationChallenge = oauth.Challenge

// FetchFunc performs an HTTP request. Providers accept one so callers can
// inject transports, retries, or test doubles.
type FetchFunc = oauth.FetchFunc

// AuthStatus tags the outcome of a headers request.
type AuthStatus string

const (
	// StatusAuthorized means headers are ready to attach to the request.
	StatusAuthorized AuthStatus = "AUTHORIZED"
	// StatusManualFlowRequired means the caller must complete a
	// browser-based authorization before headers can be produced.
	StatusManualFlowRequired AuthStatus = "MANUAL_FLOW_REQUIRED"
)

// ManualFlowPayload carries everything the caller needs to drive a
// user-interactive authorization and resume the flow afterwards.
type ManualFlowPayload struct {
	// AuthorizationURL is the fully assembled URL to open in a browser.
	AuthorizationURL string
	// State is the anti-forgery value embedded in the URL. The callback
	// must echo it back to CompleteAuthorizationFlow.
	State string
	// RedirectURI is where the authorization server will send the user.
	RedirectURI string
	// ClientID is the effective client identifier, which may come from
	// dynamic registration rather than configuration.
	ClientID string
	// Scope is the scope requested in the authorization URL.
	Scope string
	// Resource is the canonical resource URI bound to the request, empty
	// when none applies.
	Resource string
}

// HeadersResult is the tagged outcome of AuthenticationHeaders or
// HandleAuthenticationChallenge. Exactly one of Headers or Manual is
// meaningful, selected by Status.
type HeadersResult struct {
	Status  AuthStatus
	Headers map[string]string
	Manual  *ManualFlowPayload
}

// AuthorizedResult wraps ready-to-use headers.
func AuthorizedResult(headers map[string]string) *HeadersResult {
	return &HeadersResult{Status: StatusAuthorized, Headers: headers}
}

// ManualFlowResult wraps a pending user-interactive authorization.
func ManualFlowResult(payload *ManualFlowPayload) *HeadersResult {
	return &HeadersResult{Status: StatusManualFlowRequired, Manual: payload}
}

// AuthenticationProvider supplies authentication headers for outbound
// requests and reacts to server challenges. Implementations are safe for
// concurrent use.
type AuthenticationProvider interface {
	// Scheme identifies the provider's authentication scheme.
	Scheme() AuthenticationScheme

	// AuthenticationHeaders returns headers for the next request, or a
	// manual-flow payload when user interaction is required first.
	AuthenticationHeaders(ctx context.Context) (*HeadersResult, error)

	// HandleAuthenticationChallenge reacts to a 401 from the resource
	// server, typically by refreshing or restarting authorization.
	HandleAuthenticationChallenge(ctx context.Context, challenge *AuthenticationChallenge) (*HeadersResult, error)

	// IsAuthenticationValid reports whether current credentials are
	// expected to be accepted without a round trip.
	IsAuthenticationValid() bool

	// Cleanup releases tokens and cached metadata held in memory.
	Cleanup()
}
