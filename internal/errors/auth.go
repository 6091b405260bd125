// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package errors

import (
	"errors"
	"fmt"
)

// Provider-level error kinds. Callers branch on these with errors.Is.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAuthenticationExpired = errors.New("authentication expired")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrUnsupportedAuthScheme = errors.New("unsupported authentication scheme")
	ErrNetwork               = errors.New("network error")
)

// Resource indicator (RFC 8707) error kinds.
var (
	ErrInvalidResourceURI = errors.New("invalid resource URI")
)

// Metadata discovery (RFC 8414) error kinds.
var (
	ErrMetadataDiscoveryFailed = errors.New("metadata discovery failed")
	ErrInvalidMetadataResponse = errors.New("invalid metadata response")
	ErrMetadataHTTP            = errors.New("metadata HTTP error")
	ErrPKCENotSupported        = errors.New("PKCE not supported")
	ErrInvalidIssuerURL        = errors.New("invalid issuer URL")
)

// Authorization server discovery error kinds.
var (
	ErrProtectedResourceMetadataNotFound  = errors.New("protected resource metadata not found")
	ErrNoAuthenticationRequired           = errors.New("no authentication required")
	ErrAuthorizationServerDiscoveryFailed = errors.New("authorization server discovery failed")
)

// Dynamic client registration (RFC 7591) error kinds.
var (
	ErrRegistrationNetwork      = errors.New("registration network error")
	ErrRegistrationEncoding     = errors.New("registration encoding error")
	ErrRegistrationDecoding     = errors.New("registration decoding error")
	ErrRegistrationServer       = errors.New("registration server error")
	ErrRegistrationAuthRequired = errors.New("authentication required for registration")
	ErrRegistrationDenied       = errors.New("access denied")
	ErrClientNotFound           = errors.New("client not found")
	ErrRegistrationNotSupported = errors.New("registration not supported")
)

// OAuthErrorCode represents an OAuth 2.1 error code
type OAuthErrorCode error

// Standard OAuth error codes (RFC 6749 §5.2 and friends)
var (
	ErrInvalidRequest          OAuthErrorCode = errors.New("invalid_request")
	ErrInvalidClient           OAuthErrorCode = errors.New("invalid_client")
	ErrInvalidGrant            OAuthErrorCode = errors.New("invalid_grant")
	ErrUnauthorizedClient      OAuthErrorCode = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    OAuthErrorCode = errors.New("unsupported_grant_type")
	ErrInvalidScope            OAuthErrorCode = errors.New("invalid_scope")
	ErrAccessDenied            OAuthErrorCode = errors.New("access_denied")
	ErrServerError             OAuthErrorCode = errors.New("server_error")
	ErrTemporarilyUnavailable  OAuthErrorCode = errors.New("temporarily_unavailable")
	ErrUnsupportedResponseType OAuthErrorCode = errors.New("unsupported_response_type")
	ErrInvalidClientMetadata   OAuthErrorCode = errors.New("invalid_client_metadata")
	ErrInvalidRedirectURI      OAuthErrorCode = errors.New("invalid_redirect_uri")
)

// OAuthErrorMapping maps wire error strings to their corresponding OAuthErrorCode.
// Unknown strings fall back to ErrServerError at the parse site.
var OAuthErrorMapping = map[string]OAuthErrorCode{
	"invalid_request":           ErrInvalidRequest,
	"invalid_client":            ErrInvalidClient,
	"invalid_grant":             ErrInvalidGrant,
	"unauthorized_client":       ErrUnauthorizedClient,
	"unsupported_grant_type":    ErrUnsupportedGrantType,
	"invalid_scope":             ErrInvalidScope,
	"access_denied":             ErrAccessDenied,
	"server_error":              ErrServerError,
	"temporarily_unavailable":   ErrTemporarilyUnavailable,
	"unsupported_response_type": ErrUnsupportedResponseType,
	"invalid_client_metadata":   ErrInvalidClientMetadata,
	"invalid_redirect_uri":      ErrInvalidRedirectURI,
}

// OAuthError is a structured OAuth 2.1 error carrying the wire-level
// error code, the human readable description, and the optional error URI.
type OAuthError struct {
	Code        OAuthErrorCode
	Description string
	URI         string
}

// NewOAuthError builds an OAuthError from a wire error string. Unknown
// codes map to server_error so callers always get a known sentinel.
func NewOAuthError(code, description, uri string) *OAuthError {
	sentinel, ok := OAuthErrorMapping[code]
	if !ok {
		sentinel = ErrServerError
	}
	return &OAuthError{Code: sentinel, Description: description, URI: uri}
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code.Error(), e.Description)
	}
	return e.Code.Error()
}

// Unwrap exposes the sentinel code for errors.Is checks.
func (e *OAuthError) Unwrap() error {
	return e.Code
}

// OAuthErrorResponse is the JSON shape of an OAuth error payload.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// MetadataHTTPError reports a non-success status from a well-known
// metadata endpoint.
type MetadataHTTPError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface
func (e *MetadataHTTPError) Error() string {
	return fmt.Sprintf("metadata HTTP error: status %d from %s", e.StatusCode, e.URL)
}

// Unwrap lets errors.Is match ErrMetadataHTTP.
func (e *MetadataHTTPError) Unwrap() error {
	return ErrMetadataHTTP
}

// RegistrationError is a structured RFC 7591 registration failure. Kind is
// one of the registration sentinels above; for 400 responses the RFC 7591
// error body is decoded into Code/Description/URI.
type RegistrationError struct {
	Kind        error
	StatusCode  int
	Code        string
	Description string
	URI         string
	Body        string
}

// Error implements the error interface
func (e *RegistrationError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: %s (%s)", e.Kind.Error(), e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Kind.Error(), e.StatusCode)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the registration kind for errors.Is checks.
func (e *RegistrationError) Unwrap() error {
	return e.Kind
}
