// Package network owns the live peer set.
//
// Ownership boundary:
// - listener accept (server role) and dial (client role)
// - handshake: greeting out, client greeting envelope in
// - connection lifecycle events
// - fan-in receive and broadcast send over every active connection
//
// Lifecycle per accepted socket:
// - accepted -> handshaking -> active -> disconnected
//
// - disconnected is terminal; a returning peer is assigned a new actor id.
package network
