// Package store holds the readings received from agents.
//
// Store is an in-memory map keyed by record key. A second write with the
// same key replaces the first, as it does in a Realtime Database child.
// Entries older than the retention TTL are evicted by Run and hidden from
// Get, List and Latest before that; a zero TTL keeps everything.
//
// With a Persister attached the store becomes write-through: Put saves to
// the persister before updating memory, Evict deletes from it, and Open
// reloads it on start. SQLite (modernc.org/sqlite, no cgo) is the bundled
// Persister.
package store
