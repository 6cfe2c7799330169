// Package main hosts the FieldVault CLI entrypoint and command graph.
//
// The Cobra-based command tree covers farm registration, simulated captures,
// outbox inspection and maintenance, one-shot sync passes, the foreground
// daemon, and configuration scaffolding. Commands open the shared SQLite
// queue directly; WAL journaling lets them coexist with a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
