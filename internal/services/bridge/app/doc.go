// Package server hosts the bridge HTTP API next to a gRPC health endpoint
// and owns their shutdown.
package server
