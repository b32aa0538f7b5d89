package domain

import "errors"

var (
	// ErrConfigurationMissing is returned when a provider credential is absent at call time.
	// No network call is attempted when this error is returned.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrUpstreamUnavailable covers connect, TLS, handshake and authorization failures
	// against an upstream provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAnalysisUpstream is returned when the model call fails after the request was attempted.
	ErrAnalysisUpstream = errors.New("analysis upstream error")
)
