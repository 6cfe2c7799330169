// Package sensor fuses raw accelerometer and magnetometer streams into the
// orientation estimate the capture gate evaluates.
package sensor
