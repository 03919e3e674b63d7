// Package id provides utilities for generating identifiers and secrets.
//
// Record identifiers are UUIDv4 bytes encoded as base32 (RFC 4648) with no
// padding: 26 lowercase characters, safe for URLs and file paths. Secret
// tokens (bearer ids, validation codes) are drawn straight from crypto/rand.
package id
