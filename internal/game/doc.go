// Package game is a two-player arena built on the replication layer. The server owns the
// simulation; clients render replicated transforms and send their own movement input.
package game
