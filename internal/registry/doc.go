// Package registry owns actor and entity identity.
//
// Ownership boundary:
// - actor id allocation (server only)
// - replicated entity id allocation and id -> local handle bindings
// - generation-checked arena for local object storage
package registry
