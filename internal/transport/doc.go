// Package transport owns one framed peer connection.
//
// A Conn never blocks the caller on the polling path: ReceiveAll drains whatever bytes the
// background reader has already delivered and Send performs one bounded write. The only
// blocking read is ReceiveOneBlocking, which exists for the handshake greeting.
package transport
