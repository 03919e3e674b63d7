// Package sqlite implements the bridge storage contracts over SQLite.
package sqlite
