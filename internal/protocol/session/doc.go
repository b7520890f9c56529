// Package session owns the connection-start contract between a server and its clients.
//
// Ownership boundary:
// - actor identity on the wire
// - unframed handshake greeting
// - client hello payload and version admission
// - session timeouts and initial-connect backoff
package session
