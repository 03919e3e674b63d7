// Package storage defines the persistence contracts for the bridge's local
// mirror: registered identities, tresor membership and application data
// entries. The remote authority stays the source of truth for membership;
// these records are derived from approved operations.
package storage
