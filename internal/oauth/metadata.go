// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcpconnect/authkit/internal/errors"
)

const (
	wellKnownOAuthServer = "/.well-known/oauth-authorization-server"
	wellKnownOIDC        = "/.well-known/openid-configuration"

	// latestProtocolVersion is sent as the MCP-Protocol-Version header on
	// discovery requests.
	latestProtocolVersion = "2025-03-26"
)

// DiscoveryOptions carries optional knobs for metadata discovery.
type DiscoveryOptions struct {
	FetchFn         FetchFunc // Custom HTTP request function
	ProtocolVersion string    // Protocol version hint, defaults to latestProtocolVersion
}

func (o *DiscoveryOptions) fetch() FetchFunc {
	if o == nil {
		return DefaultFetch
	}
	return fetchOrDefault(o.FetchFn)
}

func (o *DiscoveryOptions) protocolVersion() string {
	if o == nil || o.ProtocolVersion == "" {
		return latestProtocolVersion
	}
	return o.ProtocolVersion
}

// metadataKind distinguishes OAuth and OIDC discovery documents.
type metadataKind string

const (
	kindOAuth metadataKind = "oauth"
	kindOIDC  metadataKind = "oidc"
)

// metadataCandidate pairs a well-known URL with its document kind.
type metadataCandidate struct {
	URL  string
	Kind metadataKind
}

// buildMetadataCandidates generates the ordered well-known URLs for an
// issuer. Without path segments the order is OAuth root then OIDC root;
// with path segments (e.g. /tenant1) it is path-insertion OAuth,
// path-insertion OIDC, then path-append OIDC.
func buildMetadataCandidates(issuer *url.URL) []metadataCandidate {
	origin := issuer.Scheme + "://" + issuer.Host

	pathname := issuer.Path
	if strings.HasSuffix(pathname, "/") {
		pathname = strings.TrimSuffix(pathname, "/")
	}

	if pathname == "" {
		return []metadataCandidate{
			{URL: origin + wellKnownOAuthServer, Kind: kindOAuth},
			{URL: origin + wellKnownOIDC, Kind: kindOIDC},
		}
	}

	return []metadataCandidate{
		{URL: origin + wellKnownOAuthServer + pathname, Kind: kindOAuth},
		{URL: origin + wellKnownOIDC + pathname, Kind: kindOIDC},
		{URL: origin + pathname + wellKnownOIDC, Kind: kindOIDC},
	}
}

// parseIssuerURL validates that an issuer is an absolute http(s) URL.
func parseIssuerURL(issuer string) (*url.URL, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidIssuerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q",
			errors.ErrInvalidIssuerURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", errors.ErrInvalidIssuerURL, issuer)
	}
	return u, nil
}

// DiscoverServerMetadata fetches RFC 8414 (or OIDC Discovery) metadata for
// an issuer, probing the well-known candidates in order. A 404 advances to
// the next candidate silently; any other failure is recorded and also
// advances; the first 2xx response is decoded and returned. When every
// candidate fails the last recorded error is surfaced wrapped in
// ErrMetadataDiscoveryFailed.
//
// Callers must invoke ValidatePKCESupport on the result before using it;
// this client does not apply the gate itself.
func DiscoverServerMetadata(ctx context.Context, issuer string, opts *DiscoveryOptions) (*ServerMetadata, error) {
	issuerURL, err := parseIssuerURL(issuer)
	if err != nil {
		return nil, err
	}

	fetch := opts.fetch()
	var lastErr error

	for _, candidate := range buildMetadataCandidates(issuerURL) {
		metadata, err := fetchServerMetadata(ctx, candidate, opts.protocolVersion(), fetch)
		if err != nil {
			var httpErr *errors.MetadataHTTPError
			if stderrors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
				continue
			}
			lastErr = err
			continue
		}
		return metadata, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: no usable metadata for %s: %v",
			errors.ErrMetadataDiscoveryFailed, issuer, lastErr)
	}
	return nil, fmt.Errorf("%w: no metadata document found for %s",
		errors.ErrMetadataDiscoveryFailed, issuer)
}

// DiscoverFromProtectedResource resolves the authorization server named by
// a protected resource metadata document and delegates to
// DiscoverServerMetadata.
func DiscoverFromProtectedResource(ctx context.Context, prm *ProtectedResourceMetadata, opts *DiscoveryOptions) (*ServerMetadata, error) {
	if prm == nil {
		return nil, fmt.Errorf("%w: no protected resource metadata",
			errors.ErrAuthorizationServerDiscoveryFailed)
	}
	issuer := prm.FirstAuthorizationServer()
	if issuer == "" {
		return nil, fmt.Errorf("%w: protected resource metadata names no authorization server",
			errors.ErrAuthorizationServerDiscoveryFailed)
	}
	metadata, err := DiscoverServerMetadata(ctx, issuer, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAuthorizationServerDiscoveryFailed, err)
	}
	return metadata, nil
}

// fetchServerMetadata issues one candidate request and decodes the result.
func fetchServerMetadata(ctx context.Context, candidate metadataCandidate, protocolVersion string, fetch FetchFunc) (*ServerMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMetadataDiscoveryFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MCP-Protocol-Version", protocolVersion)

	resp, err := fetch(candidate.URL, req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", errors.ErrNetwork, candidate.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.MetadataHTTPError{StatusCode: resp.StatusCode, URL: candidate.URL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errors.ErrNetwork, candidate.URL, err)
	}

	var metadata ServerMetadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %s returned unparseable %s document: %v",
			errors.ErrInvalidMetadataResponse, candidate.URL, candidate.Kind, err)
	}

	if metadata.Issuer == "" || metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: %s document from %s is missing required endpoints",
			errors.ErrInvalidMetadataResponse, candidate.Kind, candidate.URL)
	}

	return &metadata, nil
}
