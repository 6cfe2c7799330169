// Package syncer drains the durable outbox to the remote intake service.
// Passes run on an interval gated by connectivity, on demand after a capture,
// and immediately when the network monitor reports the link returning.
package syncer
