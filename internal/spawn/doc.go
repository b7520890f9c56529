// Package spawn replicates object creation from the authority to every peer.
//
// The authority queues values with Kind.Spawn. Flush assigns each one an entity id, applies the
// resulting envelope locally through Apply, and returns the envelopes for broadcast. Peers feed
// received envelopes to the same Apply, so every process constructs its object through one path.
package spawn
