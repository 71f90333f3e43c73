// Package core owns the transmitter-facing core server.
//
// Ownership boundary:
// - TCP listener with bounded bind retry, one transmitter session at a time
// - link session handshake state machine (login, time sync, sync ack, slots)
// - queue drain worker and ack protocol
// - wall-clock scheduler (keepalive, time broadcast, beacon)
// - lifecycle of the ingestion endpoints and the admin HTTP surface
package core
