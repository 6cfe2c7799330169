// Package farm models the registered plots a field officer can file
// observations against. Persistence lives alongside the queue in the same
// database; this package carries the domain type and its validation.
package farm
