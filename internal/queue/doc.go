// Package queue provides the durable SQLite-backed outbox for captured
// evidence. Every state transition is a single atomic update, so a crash at
// any point leaves items either untouched or cleanly moved; interrupted sync
// attempts are reclaimed on the next pass.
package queue
