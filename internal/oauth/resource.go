// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mcpconnect/authkit/internal/errors"
)

// Utilities for handling RFC 8707 resource indicator URIs.

// CanonicalizeResource normalizes a resource URI into the canonical form
// used for the "resource" parameter: lowercase scheme and host, default
// port dropped, single trailing slash stripped from the path unless the
// path is exactly "/", query kept verbatim, fragments rejected.
// Canonicalization is idempotent.
func CanonicalizeResource(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty URI", errors.ErrInvalidResourceURI)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidResourceURI, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", fmt.Errorf("%w: missing scheme in %q", errors.ErrInvalidResourceURI, raw)
	}
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidResourceURI, u.Scheme)
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return "", fmt.Errorf("%w: fragment not allowed", errors.ErrInvalidResourceURI)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", errors.ErrInvalidResourceURI, raw)
	}
	// IPv6 literals come back from Hostname() unbracketed and must be
	// re-bracketed to remain a valid authority.
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	path := u.EscapedPath()
	if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	if port != "" {
		b.WriteString(":")
		b.WriteString(port)
	}
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}

// ResourceRequestParameter percent-encodes a canonical resource URI for
// inclusion as a single query or form value. Everything outside the
// unreserved set (alphanumerics plus "-._~") is encoded, including ":"
// and "/".
func ResourceRequestParameter(canonical string) string {
	var b strings.Builder
	for i := 0; i < len(canonical); i++ {
		c := canonical[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
