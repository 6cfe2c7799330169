// Package intake uploads queued observations to the remote claim-intake
// service. Every submission carries the capture id as its idempotency key so
// ambiguous failures can be replayed without duplicating claims.
package intake
