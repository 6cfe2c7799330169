// Package daemon wires the queue store, network monitor, and synchronizer
// into a single supervised process. A flock-based lock file keeps a second
// instance from draining the same queue database.
package daemon
