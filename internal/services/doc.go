// Package services provides the shared error taxonomy and context plumbing
// used by fieldvault's external collaborators (classifier, intake, keystore).
package services
