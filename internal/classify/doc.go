// Package classify defines the crop-condition vocabulary and the black-box
// contract for the on-device image classifier.
package classify
