// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package oauth

import (
	"sync"
	"time"
)

// CredentialStore persists a dynamic client registration across provider
// lifetimes. The dynamic-registration provider consults it before
// registering and writes back after a successful registration.
// Implementations must be safe for concurrent use.
type CredentialStore interface {
	// ClientRegistration returns the stored registration, or nil.
	ClientRegistration() *ClientRegistration

	// SaveClientRegistration stores a registration, replacing any prior one.
	SaveClientRegistration(registration *ClientRegistration)

	// ClearClientRegistration drops the stored registration.
	ClearClientRegistration()
}

// InMemoryCredentialStore is an in-memory CredentialStore. Suitable for
// tests and short-lived processes; production deployments should persist
// registrations securely.
type InMemoryCredentialStore struct {
	mu           sync.RWMutex
	registration *ClientRegistration
}

// NewInMemoryCredentialStore creates an empty store.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{}
}

// ClientRegistration returns the stored registration, or nil.
func (s *InMemoryCredentialStore) ClientRegistration() *ClientRegistration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registration == nil {
		return nil
	}
	reg := *s.registration
	return &reg
}

// SaveClientRegistration stores a registration.
func (s *InMemoryCredentialStore) SaveClientRegistration(registration *ClientRegistration) {
	s.mu.Lock()
	s.registration = registration
	s.mu.Unlock()
}

// ClearClientRegistration drops the stored registration.
func (s *InMemoryCredentialStore) ClearClientRegistration() {
	s.mu.Lock()
	s.registration = nil
	s.mu.Unlock()
}

// RegistrationUsable reports whether a stored registration can still be
// used: it has a client id and its secret, if any, has not expired.
func RegistrationUsable(registration *ClientRegistration, now time.Time) bool {
	if registration == nil || registration.ClientID == "" {
		return false
	}
	if registration.ClientSecret != "" && registration.ClientSecretExpiresAt != 0 {
		if now.Unix() >= registration.ClientSecretExpiresAt {
			return false
		}
	}
	return true
}
