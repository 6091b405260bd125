// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"github.com/mcpconnect/authkit/internal/oauth"
	"github.com/mcpconnect/authkit/internal/retry"
)

// providerOptions holds cross-cutting dependencies shared by every
// provider variant.
type providerOptions struct {
	logger   Logger
	fetch    oauth.FetchFunc
	recorder FlowRecorder
}

func defaultProviderOptions() providerOptions {
	return providerOptions{
		logger: GetDefaultLogger(),
	}
}

func applyProviderOptions(opts []ProviderOption) providerOptions {
	o := defaultProviderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ProviderOption configures a provider at construction time.
type ProviderOption func(*providerOptions)

// WithLogger sets the logger used by the provider.
func WithLogger(logger Logger) ProviderOption {
	return func(o *providerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFetchFunc replaces the HTTP transport used for metadata discovery,
// registration and token requests.
func WithFetchFunc(fetch FetchFunc) ProviderOption {
	return func(o *providerOptions) {
		o.fetch = fetch
	}
}

// WithRetry wraps the provider's transport with retries for transient
// failures, using the given policy. A zero config applies the defaults.
func WithRetry(cfg retry.Config) ProviderOption {
	return func(o *providerOptions) {
		o.fetch = retry.Fetch(o.fetch, cfg)
	}
}

// WithFlowRecorder attaches a metrics recorder for discovery,
// registration and token operations.
func WithFlowRecorder(recorder FlowRecorder) ProviderOption {
	return func(o *providerOptions) {
		o.recorder = recorder
	}
}
