// Package session issues and checks the bearer tokens handed out after a
// successful login.
//
// A token holds a snapshot of the identity taken at login; checks never
// refresh it from storage. Expired tokens are removed when they are next
// looked up rather than by a background sweep.
package session
