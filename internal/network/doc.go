// Package network watches connectivity to the intake endpoint with a cheap
// periodic TCP probe so sync passes only run when delivery has a chance.
package network
