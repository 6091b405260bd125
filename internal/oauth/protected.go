// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/mcpconnect/authkit/internal/errors"
)

const wellKnownProtectedResource = "/.well-known/oauth-protected-resource"

// resourceMetadataPattern extracts the resource_metadata parameter from a
// WWW-Authenticate header value, e.g.
// Bearer realm="mcp", resource_metadata="https://example.com/.well-known/oauth-protected-resource"
var resourceMetadataPattern = regexp.MustCompile(`resource_metadata="([^"]+)"`)

// ResourceMetadataURLFromChallenge pulls the resource_metadata URL out of
// a challenge's WWW-Authenticate header. Header name lookup is
// case-insensitive (http.Header canonicalizes on Get).
func ResourceMetadataURLFromChallenge(ch *Challenge) (string, bool) {
	if ch == nil || ch.Header == nil {
		return "", false
	}
	value := ch.Header.Get("WWW-Authenticate")
	if value == "" {
		return "", false
	}
	match := resourceMetadataPattern.FindStringSubmatch(value)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// DiscoverProtectedResourceMetadata derives the protected resource
// metadata for a resource server. Strategies in order: the
// resource_metadata URL advertised in the challenge's WWW-Authenticate
// header, then the well-known URI computed from the resource server
// origin and resourceType. The first success wins; both failing yields
// ErrProtectedResourceMetadataNotFound.
func DiscoverProtectedResourceMetadata(ctx context.Context, resourceServerURL, resourceType string, ch *Challenge, opts *DiscoveryOptions) (*ProtectedResourceMetadata, error) {
	fetch := opts.fetch()
	var lastErr error

	if metadataURL, ok := ResourceMetadataURLFromChallenge(ch); ok {
		prm, err := fetchProtectedResourceMetadata(ctx, metadataURL, opts.protocolVersion(), fetch)
		if err == nil {
			return prm, nil
		}
		lastErr = err
	}

	wellKnownURL, err := protectedResourceWellKnownURL(resourceServerURL, resourceType)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
	} else {
		prm, err := fetchProtectedResourceMetadata(ctx, wellKnownURL, opts.protocolVersion(), fetch)
		if err == nil {
			return prm, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", errors.ErrProtectedResourceMetadataNotFound, lastErr)
}

// protectedResourceWellKnownURL computes the RFC 9728 well-known URI from
// the resource server origin, appending the resource type as a path
// suffix when present (e.g. /.well-known/oauth-protected-resource/mcp).
func protectedResourceWellKnownURL(resourceServerURL, resourceType string) (string, error) {
	u, err := url.Parse(resourceServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid resource server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("resource server URL %q is not absolute", resourceServerURL)
	}
	target := u.Scheme + "://" + u.Host + wellKnownProtectedResource
	if resourceType != "" {
		target += "/" + resourceType
	}
	return target, nil
}

// fetchProtectedResourceMetadata fetches and decodes one metadata document.
func fetchProtectedResourceMetadata(ctx context.Context, metadataURL, protocolVersion string, fetch FetchFunc) (*ProtectedResourceMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MCP-Protocol-Version", protocolVersion)

	resp, err := fetch(metadataURL, req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", errors.ErrNetwork, metadataURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.MetadataHTTPError{StatusCode: resp.StatusCode, URL: metadataURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errors.ErrNetwork, metadataURL, err)
	}

	var prm ProtectedResourceMetadata
	if err := json.Unmarshal(body, &prm); err != nil {
		return nil, fmt.Errorf("%w: %s returned unparseable protected resource metadata: %v",
			errors.ErrInvalidMetadataResponse, metadataURL, err)
	}

	return &prm, nil
}
