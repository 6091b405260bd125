// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"github.com/mcpconnect/authkit/internal/errors"
)

// Error kinds surfaced by providers and the discovery machinery. Callers
// branch with errors.Is; structured details travel on the typed errors
// below.
var (
	ErrInvalidCredentials    = errors.ErrInvalidCredentials
	ErrAuthenticationExpired = errors.ErrAuthenticationExpired
	ErrAuthenticationFailed  = errors.ErrAuthenticationFailed
	ErrUnsupportedAuthScheme = errors.ErrUnsupportedAuthScheme
	ErrNetwork               = errors.ErrNetwork

	ErrInvalidResourceURI = errors.ErrInvalidResourceURI

	ErrMetadataDiscoveryFailed = errors.ErrMetadataDiscoveryFailed
	ErrInvalidMetadataResponse = errors.ErrInvalidMetadataResponse
	ErrMetadataHTTP            = errors.ErrMetadataHTTP
	ErrPKCENotSupported        = errors.ErrPKCENotSupported
	ErrInvalidIssuerURL        = errors.ErrInvalidIssuerURL

	ErrProtectedResourceMetadataNotFound  = errors.ErrProtectedResourceMetadataNotFound
	ErrNoAuthenticationRequired           = errors.ErrNoAuthenticationRequired
	ErrAuthorizationServerDiscoveryFailed = errors.ErrAuthorizationServerDiscoveryFailed

	ErrRegistrationNetwork      = errors.ErrRegistrationNetwork
	ErrRegistrationEncoding     = errors.ErrRegistrationEncoding
	ErrRegistrationDecoding     = errors.ErrRegistrationDecoding
	ErrRegistrationServer       = errors.ErrRegistrationServer
	ErrRegistrationAuthRequired = errors.ErrRegistrationAuthRequired
	ErrRegistrationDenied       = errors.ErrRegistrationDenied
	ErrClientNotFound           = errors.ErrClientNotFound
	ErrRegistrationNotSupported = errors.ErrRegistrationNotSupported
)

// OAuth 2.1 wire error codes, matchable through OAuthError with errors.Is.
var (
	ErrInvalidRequest         = errors.ErrInvalidRequest
	ErrInvalidClient          = errors.ErrInvalidClient
	ErrInvalidGrant           = errors.ErrInvalidGrant
	ErrUnauthorizedClient     = errors.ErrUnauthorizedClient
	ErrInvalidScope           = errors.ErrInvalidScope
	ErrAccessDenied           = errors.ErrAccessDenied
	ErrServerError            = errors.ErrServerError
	ErrTemporarilyUnavailable = errors.ErrTemporarilyUnavailable
)

// OAuthError is a structured OAuth 2.1 error from a token or
// authorization server.
type OAuthError = errors.OAuthError

// RegistrationError is a structured RFC 7591 registration failure.
type RegistrationError = errors.RegistrationError

// MetadataHTTPError reports a non-success status from a metadata endpoint.
type MetadataHTTPError = errors.MetadataHTTPError
