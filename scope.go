// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"strings"
)

// defaultScope is requested when neither configuration nor server
// metadata yields a usable scope.
const defaultScope = "mcp"

// advertisedScopePreference lists combined scope strings preferred when a
// server advertises one of them verbatim, in priority order.
var advertisedScopePreference = []string{
	"mcp",
	"profile email",
	"openid profile email",
}

// synthesizedScopePreference lists scope combinations assembled from
// individually advertised scopes, in priority order.
var synthesizedScopePreference = []string{
	"openid profile email",
	"profile email",
	"openid profile",
	"openid email",
}

// individualScopePreference lists single scopes tried last, in priority
// order.
var individualScopePreference = []string{"openid", "profile", "email"}

// NegotiateScope selects the scope to request from an authorization
// server, reconciling the configured scope with the server's advertised
// scopes_supported. The result is used for registration, authorization
// and token requests alike.
func NegotiateScope(configured string, scopesSupported []string) string {
	configured = strings.TrimSpace(configured)

	if len(scopesSupported) == 0 {
		if configured != "" {
			return configured
		}
		return defaultScope
	}

	supported := make(map[string]bool, len(scopesSupported))
	for _, s := range scopesSupported {
		supported[s] = true
	}

	if configured != "" && supported[configured] {
		return configured
	}

	for _, combined := range advertisedScopePreference {
		if supported[combined] {
			return combined
		}
	}

	for _, combined := range synthesizedScopePreference {
		if allScopesSupported(combined, supported) {
			return combined
		}
	}

	for _, single := range individualScopePreference {
		if supported[single] {
			return single
		}
	}

	return scopesSupported[0]
}

func allScopesSupported(combined string, supported map[string]bool) bool {
	for _, member := range strings.Fields(combined) {
		if !supported[member] {
			return false
		}
	}
	return true
}
