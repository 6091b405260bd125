// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/mcpconnect/authkit/internal/errors"
)

// ClientAuthMethod lists supported client authentication methods for the
// token endpoint.
type ClientAuthMethod string

const (
	ClientAuthMethodBasic ClientAuthMethod = "client_secret_basic"
	ClientAuthMethodPost  ClientAuthMethod = "client_secret_post"
	ClientAuthMethodNone  ClientAuthMethod = "none"
)

// TokenEndpointOptions identifies the token endpoint and the client
// credentials used against it.
type TokenEndpointOptions struct {
	TokenEndpoint    string
	ClientID         string
	ClientSecret     string
	SupportedMethods []string // server-advertised token_endpoint_auth_methods_supported
	FetchFn          FetchFunc
}

// ExchangeRequest carries the authorization-code exchange parameters.
type ExchangeRequest struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
	Resource     string // canonical resource URI, optional
}

// RefreshRequest carries the refresh-grant parameters.
type RefreshRequest struct {
	RefreshToken string
	Scope        string // scope chosen at authorization time, optional
	Resource     string // canonical resource URI, optional
}

// selectClientAuthMethod chooses a client auth method from server support
// and the presence of a client secret.
func selectClientAuthMethod(clientSecret string, supportedMethods []string) ClientAuthMethod {
	hasSecret := clientSecret != ""
	if len(supportedMethods) == 0 {
		if hasSecret {
			return ClientAuthMethodPost
		}
		return ClientAuthMethodNone
	}

	if hasSecret && slices.Contains(supportedMethods, string(ClientAuthMethodBasic)) {
		return ClientAuthMethodBasic
	}
	if hasSecret && slices.Contains(supportedMethods, string(ClientAuthMethodPost)) {
		return ClientAuthMethodPost
	}
	if slices.Contains(supportedMethods, string(ClientAuthMethodNone)) {
		return ClientAuthMethodNone
	}
	if hasSecret {
		return ClientAuthMethodPost
	}
	return ClientAuthMethodNone
}

// applyClientAuthentication writes the chosen client auth into headers
// and/or form parameters.
func applyClientAuthentication(method ClientAuthMethod, clientID, clientSecret string, headers http.Header, params url.Values) error {
	switch method {
	case ClientAuthMethodBasic:
		if clientSecret == "" {
			return fmt.Errorf("client_secret_basic authentication requires a client_secret")
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
		headers.Set("Authorization", "Basic "+credentials)
		return nil
	case ClientAuthMethodPost:
		params.Set("client_id", clientID)
		if clientSecret != "" {
			params.Set("client_secret", clientSecret)
		}
		return nil
	case ClientAuthMethodNone:
		params.Set("client_id", clientID)
		return nil
	default:
		return fmt.Errorf("unsupported client authentication method: %s", method)
	}
}

// ExchangeAuthorizationCode exchanges an authorization code plus its PKCE
// verifier for tokens.
func ExchangeAuthorizationCode(ctx context.Context, opts TokenEndpointOptions, req ExchangeRequest) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":    []string{"authorization_code"},
		"code":          []string{req.Code},
		"redirect_uri":  []string{req.RedirectURI},
		"code_verifier": []string{req.CodeVerifier},
	}
	if req.Resource != "" {
		params.Set("resource", req.Resource)
	}
	return postTokenRequest(ctx, opts, params)
}

// RefreshAccessToken exchanges a refresh token for new tokens. When the
// response omits a refresh token, the original one is retained so the
// caller never loses refresh capability silently.
func RefreshAccessToken(ctx context.Context, opts TokenEndpointOptions, req RefreshRequest) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{req.RefreshToken},
	}
	if req.Scope != "" {
		params.Set("scope", req.Scope)
	}
	if req.Resource != "" {
		params.Set("resource", req.Resource)
	}

	tokens, err := postTokenRequest(ctx, opts, params)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = req.RefreshToken
	}
	return tokens, nil
}

// postTokenRequest runs one form-encoded POST against the token endpoint
// and decodes the response.
func postTokenRequest(ctx context.Context, opts TokenEndpointOptions, params url.Values) (*TokenResponse, error) {
	if opts.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: no token endpoint", errors.ErrAuthenticationFailed)
	}

	headers := http.Header{
		"Content-Type": []string{"application/x-www-form-urlencoded"},
		"Accept":       []string{"application/json"},
	}
	method := selectClientAuthMethod(opts.ClientSecret, opts.SupportedMethods)
	if err := applyClientAuthentication(method, opts.ClientID, opts.ClientSecret, headers, params); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.TokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}
	req.Header = headers

	fetch := fetchOrDefault(opts.FetchFn)
	resp, err := fetch(opts.TokenEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if oauthErr := parseOAuthError(body); oauthErr != nil {
			return nil, oauthErr
		}
		return nil, fmt.Errorf("%w: token request failed with status %d: %s",
			errors.ErrAuthenticationFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: unparseable token response: %v", errors.ErrAuthenticationFailed, err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response is missing access_token", errors.ErrAuthenticationFailed)
	}

	return &tokens, nil
}

// parseOAuthError decodes an RFC 6749 error payload, or returns nil when
// the body is not one.
func parseOAuthError(body []byte) *errors.OAuthError {
	var wire errors.OAuthErrorResponse
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error == "" {
		return nil
	}
	return errors.NewOAuthError(wire.Error, wire.ErrorDescription, wire.ErrorURI)
}
