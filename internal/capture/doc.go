// Package capture assembles immutable evidence records at the shutter event.
package capture
