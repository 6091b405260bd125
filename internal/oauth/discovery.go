// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mcpconnect/authkit/internal/errors"
)

// DiscoverOptions configures the end-to-end authorization server
// discovery sequence.
type DiscoverOptions struct {
	// ResourceServerURL is the URL of the protected resource server.
	ResourceServerURL string

	// ResourceType optionally suffixes the well-known protected resource
	// path (e.g. "mcp" for /.well-known/oauth-protected-resource/mcp).
	ResourceType string

	// PreconfiguredIssuer, when set, is tried directly before any
	// challenge-driven discovery. Its failure is not fatal.
	PreconfiguredIssuer string

	// Challenge, when set, replaces the unauthenticated probe. Transports
	// pass the 401 they already received.
	Challenge *Challenge

	// FetchFn is the HTTP fetch capability; defaults to http.DefaultClient.
	FetchFn FetchFunc

	// ProtocolVersion overrides the MCP-Protocol-Version discovery header.
	ProtocolVersion string

	// Logger receives discovery diagnostics; nil disables them.
	Logger Logger
}

func (o *DiscoverOptions) discoveryOptions() *DiscoveryOptions {
	return &DiscoveryOptions{FetchFn: o.FetchFn, ProtocolVersion: o.ProtocolVersion}
}

func (o *DiscoverOptions) debugf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Debugf(format, args...)
	}
}

// DiscoverAuthorizationServer finds and fetches the authorization server
// metadata for a resource server, starting from nothing but its URL.
// Sequence, short-circuiting on first success:
//
//  1. If a preconfigured issuer is set, try it; on failure fall through.
//  2. Probe the resource server unauthenticated. A 401 yields a
//     challenge; a 2xx means the resource is unprotected and is an error.
//  3. Derive protected resource metadata from the challenge
//     (WWW-Authenticate resource_metadata, then well-known probing).
//  4. Discover the authorization server metadata it names.
//
// The caller must run ValidatePKCESupport on the returned metadata; that
// gate is mandatory on every path that uses the metadata.
func DiscoverAuthorizationServer(ctx context.Context, opts DiscoverOptions) (*ServerMetadata, error) {
	if opts.PreconfiguredIssuer != "" {
		metadata, err := DiscoverServerMetadata(ctx, opts.PreconfiguredIssuer, opts.discoveryOptions())
		if err == nil {
			return metadata, nil
		}
		opts.debugf("preconfigured authorization server %s unusable, falling through to challenge discovery: %v",
			opts.PreconfiguredIssuer, err)
	}

	challenge := opts.Challenge
	if challenge == nil {
		var err error
		challenge, err = probeResourceServer(ctx, opts.ResourceServerURL, fetchOrDefault(opts.FetchFn))
		if err != nil {
			return nil, err
		}
	}

	prm, err := DiscoverProtectedResourceMetadata(ctx, opts.ResourceServerURL, opts.ResourceType, challenge, opts.discoveryOptions())
	if err != nil {
		return nil, err
	}
	opts.debugf("protected resource metadata for %s names authorization server %s",
		opts.ResourceServerURL, prm.FirstAuthorizationServer())

	return DiscoverFromProtectedResource(ctx, prm, opts.discoveryOptions())
}

// probeResourceServer issues an unauthenticated request expecting a 401
// challenge. A success status means the resource requires no
// authentication, which this flow treats as an error.
func probeResourceServer(ctx context.Context, resourceServerURL string, fetch FetchFunc) (*Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := fetch(resourceServerURL, req)
	if err != nil {
		return nil, fmt.Errorf("%w: probing %s: %v", errors.ErrNetwork, resourceServerURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, fmt.Errorf("%w: %s answered %d to an unauthenticated request",
			errors.ErrNoAuthenticationRequired, resourceServerURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, &errors.MetadataHTTPError{StatusCode: resp.StatusCode, URL: resourceServerURL}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &Challenge{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		ServerURL:  resourceServerURL,
	}, nil
}
