// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"
)

// MethodS256 is the only code challenge method this system offers. The
// "plain" method is never generated or accepted.
const MethodS256 = "S256"

// Pair holds the proof material for a single authorization attempt. The
// verifier is kept only until the matching token exchange completes.
type Pair struct {
	// CodeVerifier is the high-entropy cryptographic random string
	CodeVerifier string
	// CodeChallenge is the derived challenge from the code verifier
	CodeChallenge string
	// Method is always "S256"
	Method string
}

// Generate produces a fresh PKCE pair (RFC 7636). The verifier is 32
// random bytes base64url-encoded, giving 43 characters from the
// unreserved set; the challenge is the base64url-encoded SHA-256 of the
// verifier.
func Generate() (*Pair, error) {
	verifierBytes := make([]byte, 32) // 32 bytes = 43 chars in base64url
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	codeVerifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &Pair{
		CodeVerifier:  codeVerifier,
		CodeChallenge: codeChallenge,
		Method:        MethodS256,
	}, nil
}

// Validate verifies a code_verifier against a code_challenge.
func Validate(codeVerifier, codeChallenge string) bool {
	if codeVerifier == "" || codeChallenge == "" {
		return false
	}

	hash := sha256.Sum256([]byte(codeVerifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])

	return computed == codeChallenge
}

// ValidateChallengeFormat checks that a code_challenge is well formed:
// 43-128 characters of base64url that decode to exactly 32 bytes (the
// SHA-256 output size).
func ValidateChallengeFormat(codeChallenge string) error {
	if codeChallenge == "" {
		return fmt.Errorf("code_challenge is required")
	}
	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return fmt.Errorf("code_challenge length must be between 43 and 128 characters")
	}
	if !isValidBase64URL(codeChallenge) {
		return fmt.Errorf("code_challenge must be valid BASE64URL")
	}
	return nil
}

// isValidBase64URL checks whether the given string is a valid Base64URL
// value decoding to exactly 32 bytes.
func isValidBase64URL(s string) bool {
	base64URLPattern := `^[A-Za-z0-9_-]+$`
	matched, err := regexp.MatchString(base64URLPattern, s)
	if err != nil || !matched {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}

	return len(decoded) == 32
}
