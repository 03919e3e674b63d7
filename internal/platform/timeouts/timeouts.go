// Package timeouts defines shared timeout constants used across the bridge.
// Centralizing these values keeps outbound deadlines discoverable.
package timeouts

import "time"

// RemoteCall caps a single signed call to the remote authority when no
// configured value overrides it.
const RemoteCall = 10 * time.Second

// TokenExchange caps the authorization-code exchange at the IdP token endpoint.
const TokenExchange = 10 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// PendingLogin bounds how long a redirect login may wait for its callback.
const PendingLogin = 15 * time.Minute
