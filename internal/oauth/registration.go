// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/mcpconnect/authkit/internal/errors"
)

// softwareVersion is echoed in registration requests as the RFC 7591
// software_version member.
const softwareVersion = "1.0"

// RegistrationClient performs RFC 7591 dynamic client registration and
// RFC 7592 management operations against one registration endpoint.
type RegistrationClient struct {
	endpoint string
	fetch    FetchFunc
}

// NewRegistrationClient builds a client for a registration endpoint.
// A nil fetch falls back to http.DefaultClient.
func NewRegistrationClient(endpoint string, fetch FetchFunc) *RegistrationClient {
	return &RegistrationClient{endpoint: endpoint, fetch: fetchOrDefault(fetch)}
}

// MCPClientRegistration builds the registration request this system
// always uses: a native public client with no token endpoint auth, the
// authorization_code and refresh_token grants, and the code response
// type. These values reflect a public-client, PKCE-only posture and are
// the only ones ever registered.
func MCPClientRegistration(redirectURIs []string, clientName, scope string) *ClientMetadata {
	return &ClientMetadata{
		RedirectURIs:            redirectURIs,
		ApplicationType:         "native",
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ClientName:              clientName,
		Scope:                   scope,
		SoftwareID:              uuid.NewString(),
		SoftwareVersion:         softwareVersion,
	}
}

// Register submits a registration request. initialAccessToken, when
// non-empty, is sent as a bearer Authorization header; softwareStatement,
// when non-empty, is attached to the request body.
func (c *RegistrationClient) Register(ctx context.Context, metadata *ClientMetadata, initialAccessToken, softwareStatement string) (*ClientRegistration, error) {
	if softwareStatement != "" {
		clone := *metadata
		clone.SoftwareStatement = softwareStatement
		metadata = &clone
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationEncoding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if initialAccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+initialAccessToken)
	}

	return c.doRegistration(req, http.MethodPost)
}

// Update replaces a registered client's metadata (RFC 7592). The
// management token is required.
func (c *RegistrationClient) Update(ctx context.Context, clientID, managementToken string, metadata *ClientMetadata) (*ClientRegistration, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationEncoding, err)
	}

	req, err := c.managementRequest(ctx, http.MethodPut, clientID, managementToken, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRegistration(req, http.MethodPut)
}

// Get reads a client's current registration (RFC 7592).
func (c *RegistrationClient) Get(ctx context.Context, clientID, managementToken string) (*ClientRegistration, error) {
	req, err := c.managementRequest(ctx, http.MethodGet, clientID, managementToken, nil)
	if err != nil {
		return nil, err
	}
	return c.doRegistration(req, http.MethodGet)
}

// Delete removes a client registration (RFC 7592).
func (c *RegistrationClient) Delete(ctx context.Context, clientID, managementToken string) error {
	req, err := c.managementRequest(ctx, http.MethodDelete, clientID, managementToken, nil)
	if err != nil {
		return err
	}

	resp, err := c.fetch(req.URL.String(), req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRegistrationNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return registrationFailure(resp.StatusCode, body, http.MethodDelete)
}

// managementRequest builds an RFC 7592 request addressed by client id.
func (c *RegistrationClient) managementRequest(ctx context.Context, method, clientID, managementToken string, body io.Reader) (*http.Request, error) {
	if managementToken == "" {
		return nil, fmt.Errorf("%w: management operations require a registration access token",
			errors.ErrRegistrationAuthRequired)
	}
	target := c.endpoint + "/" + url.PathEscape(clientID)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationEncoding, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+managementToken)
	return req, nil
}

// doRegistration sends a request and decodes the registration response.
func (c *RegistrationClient) doRegistration(req *http.Request, method string) (*ClientRegistration, error) {
	resp, err := c.fetch(req.URL.String(), req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationNetwork, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var registration ClientRegistration
		if err := json.Unmarshal(body, &registration); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrRegistrationDecoding, err)
		}
		if registration.ClientID == "" {
			return nil, fmt.Errorf("%w: response is missing client_id", errors.ErrRegistrationDecoding)
		}
		return &registration, nil
	default:
		return nil, registrationFailure(resp.StatusCode, body, method)
	}
}

// registrationFailure maps a non-success registration response to the
// error taxonomy. A 400 surfaces the decoded RFC 7591 error body; the
// remaining codes map to their dedicated kinds.
func registrationFailure(statusCode int, body []byte, method string) error {
	switch statusCode {
	case http.StatusBadRequest:
		var wire errors.OAuthErrorResponse
		if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
			return &errors.RegistrationError{
				Kind:        errors.ErrRegistrationServer,
				StatusCode:  statusCode,
				Code:        wire.Error,
				Description: wire.ErrorDescription,
				URI:         wire.ErrorURI,
			}
		}
		return &errors.RegistrationError{
			Kind:       errors.ErrRegistrationServer,
			StatusCode: statusCode,
			Body:       string(body),
		}
	case http.StatusUnauthorized:
		return &errors.RegistrationError{Kind: errors.ErrRegistrationAuthRequired, StatusCode: statusCode}
	case http.StatusForbidden:
		return &errors.RegistrationError{Kind: errors.ErrRegistrationDenied, StatusCode: statusCode}
	case http.StatusNotFound:
		if method != http.MethodPost {
			return &errors.RegistrationError{Kind: errors.ErrClientNotFound, StatusCode: statusCode}
		}
	case http.StatusMethodNotAllowed:
		if method == http.MethodPost {
			return &errors.RegistrationError{Kind: errors.ErrRegistrationNotSupported, StatusCode: statusCode}
		}
	}
	return &errors.RegistrationError{
		Kind:       errors.ErrRegistrationServer,
		StatusCode: statusCode,
		Body:       string(body),
	}
}
