// Package gate decides whether a capture attempt may proceed based on device
// orientation and proximity to the registered farm. The decision is advisory:
// downstream stages record gate metadata but never assume an image is
// fraud-free.
package gate
