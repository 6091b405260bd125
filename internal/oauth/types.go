// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/mcpconnect/authkit/internal/errors"
)

// FetchFunc is a customizable HTTP fetch function used by discovery,
// registration and token flows. It receives the target URL alongside the
// prepared request so wrappers can key behavior off the URL.
type FetchFunc func(url string, req *http.Request) (*http.Response, error)

// DefaultFetch issues the request with http.DefaultClient.
func DefaultFetch(_ string, req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

// fetchOrDefault returns fn, or DefaultFetch when fn is nil.
func fetchOrDefault(fn FetchFunc) FetchFunc {
	if fn == nil {
		return DefaultFetch
	}
	return fn
}

// Logger is the logging capability injected into discovery components.
// The root package's zap-backed logger satisfies it structurally.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ServerMetadata is RFC 8414 OAuth 2.0 Authorization Server Metadata.
// OpenID Connect Discovery 1.0 documents decode into the same shape; the
// fields this system consumes are named identically in both formats.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`                                          // Issuer identifier
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`                          // Authorization endpoint URL
	TokenEndpoint                     string   `json:"token_endpoint"`                                  // Token endpoint URL
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`                 // Dynamic client registration endpoint
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`                   // Token revocation endpoint
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`                     // OIDC userinfo endpoint
	JwksURI                           string   `json:"jwks_uri,omitempty"`                              // JWKS URI
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`                      // Supported scopes
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`              // Supported response types
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`                 // Supported grant types
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"` // Supported token endpoint auth methods
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`      // Supported PKCE methods
}

// ValidatePKCESupport enforces the S256 requirement. Absence of
// code_challenge_methods_supported, an empty list, or a list without
// "S256" all make the server unusable. Every flow must pass this gate
// before the metadata is used.
func (m *ServerMetadata) ValidatePKCESupport() error {
	if m.CodeChallengeMethodsSupported == nil {
		return fmt.Errorf("%w: server does not advertise code_challenge_methods_supported",
			errors.ErrPKCENotSupported)
	}
	if len(m.CodeChallengeMethodsSupported) == 0 {
		return fmt.Errorf("%w: code_challenge_methods_supported is empty",
			errors.ErrPKCENotSupported)
	}
	if !slices.Contains(m.CodeChallengeMethodsSupported, "S256") {
		return fmt.Errorf("%w: server advertises %v but not S256",
			errors.ErrPKCENotSupported, m.CodeChallengeMethodsSupported)
	}
	return nil
}

// AuthorizationServerRef is an authorization server identifier from a
// protected resource metadata document. Servers in the wild publish it
// either as a bare string or as an object carrying an "issuer" member,
// so both forms decode.
type AuthorizationServerRef string

// UnmarshalJSON accepts "https://..." and {"issuer": "https://..."}.
func (r *AuthorizationServerRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = AuthorizationServerRef(s)
		return nil
	}
	var obj struct {
		Issuer string `json:"issuer"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = AuthorizationServerRef(obj.Issuer)
	return nil
}

// ProtectedResourceMetadata is the RFC 9728 document linking a resource
// server to its authorization server(s).
type ProtectedResourceMetadata struct {
	Resource               string                   `json:"resource"`                           // Resource identifier URI
	AuthorizationServers   []AuthorizationServerRef `json:"authorization_servers,omitempty"`    // Authorization server issuers
	ScopesSupported        []string                 `json:"scopes_supported,omitempty"`         // Supported scopes
	BearerMethodsSupported []string                 `json:"bearer_methods_supported,omitempty"` // Supported bearer presentation methods
	ResourceName           string                   `json:"resource_name,omitempty"`            // Human friendly resource name
	ResourceDocumentation  string                   `json:"resource_documentation,omitempty"`   // Documentation URL
}

// FirstAuthorizationServer returns the first non-empty authorization
// server identifier, or "" when the document names none.
func (m *ProtectedResourceMetadata) FirstAuthorizationServer() string {
	for _, ref := range m.AuthorizationServers {
		if ref != "" {
			return string(ref)
		}
	}
	return ""
}

// ClientMetadata is the RFC 7591 registration request payload.
type ClientMetadata struct {
	RedirectURIs            []string `json:"redirect_uris"`                        // Allowed redirect URIs for the client
	ApplicationType         string   `json:"application_type,omitempty"`           // "native" or "web"
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"` // Client auth method at token endpoint
	GrantTypes              []string `json:"grant_types,omitempty"`                // Requested grant types
	ResponseTypes           []string `json:"response_types,omitempty"`             // Requested response types
	ClientName              string   `json:"client_name,omitempty"`                // Human readable client name
	ClientURI               string   `json:"client_uri,omitempty"`                 // Client homepage URL
	Scope                   string   `json:"scope,omitempty"`                      // Requested scopes as space separated string
	Contacts                []string `json:"contacts,omitempty"`                   // Admin contact emails
	SoftwareID              string   `json:"software_id,omitempty"`                // Software identifier
	SoftwareVersion         string   `json:"software_version,omitempty"`           // Software version
	SoftwareStatement       string   `json:"software_statement,omitempty"`         // Software statement assertion (JWT)
}

// ClientInformation is the credential portion of an RFC 7591 response.
type ClientInformation struct {
	ClientID              string `json:"client_id"`                          // Issued client identifier
	ClientSecret          string `json:"client_secret,omitempty"`            // Issued client secret if applicable
	ClientIDIssuedAt      int64  `json:"client_id_issued_at,omitempty"`      // Issue time in seconds since epoch
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at,omitempty"` // Secret expiry time in seconds since epoch, 0 means never
}

// ClientRegistration is the full RFC 7591 registration response: issued
// credentials plus the echoed client metadata. A registration is scoped
// to the registration endpoint that produced it.
type ClientRegistration struct {
	ClientInformation
	ClientMetadata
	RegistrationAccessToken string `json:"registration_access_token,omitempty"` // RFC 7592 management token
	RegistrationClientURI   string `json:"registration_client_uri,omitempty"`   // RFC 7592 management URI
}

// TokenResponse is the OAuth 2.1 token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`            // Access token value, required non empty
	TokenType    string `json:"token_type"`              // Token type, for example Bearer
	ExpiresIn    *int64 `json:"expires_in,omitempty"`    // Access token lifetime in seconds
	RefreshToken string `json:"refresh_token,omitempty"` // Refresh token if granted
	Scope        string `json:"scope,omitempty"`         // Granted scope as space separated string
	IDToken      string `json:"id_token,omitempty"`      // OIDC ID token if requested
}

// Challenge describes a 401 response from a resource server. The
// transport layer produces it; challenge handling consumes it.
type Challenge struct {
	StatusCode int         // Response status, expected 401
	Header     http.Header // Response headers, WWW-Authenticate in particular
	Body       []byte      // Optional response body
	ServerURL  string      // Resource server the response came from
}
