// Package session owns the core<->transmitter link session primitives.
//
// Ownership boundary:
// - login / time-sync line patterns and handshake states
// - per-session MSG sequence counter
// - link timing defaults and bind retry backoff
package session
