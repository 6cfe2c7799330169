// Package envelope provides authenticated encryption for queued payloads
// using a key held by a managed key store.
package envelope
