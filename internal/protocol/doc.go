// Package protocol owns the transmitter-link wire dialect.
//
// Ownership boundary:
// - frame: outbound frame model, line encoders, submission-line parser, ack classification
// - session: handshake line patterns, handshake states, sequence counter, link timing
package protocol
