// Package replication drives one process through the three tick phases.
//
// Receive admits new peers, drains every connection, routes typed messages and applies spawns.
// Simulate hands control to the application. Send flushes pending spawns and then queued
// messages to every active peer.
package replication
