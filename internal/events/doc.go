// Package events routes tagged envelopes to typed per-tick inbound queues and buffers typed
// outbound values for broadcast.
//
// Every replicated type is registered once at startup. The resulting table is closed: envelopes
// with a tag nobody registered are handed back to the caller untouched.
package events
