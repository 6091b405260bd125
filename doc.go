// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

// Package authkit supplies authentication providers for MCP clients.
//
// A provider turns stored or discovered credentials into request
// headers. Static schemes (API key, basic, bearer) wrap fixed
// credentials. The OAuth variants implement the OAuth 2.1
// authorization-code flow with PKCE, including RFC 8414 server metadata
// discovery, RFC 7591 dynamic client registration and RFC 8707 resource
// indicators. User-interactive authorization is reported as data, a
// ManualFlowPayload, rather than as an error, so callers decide how to
// drive the browser step.
package authkit
