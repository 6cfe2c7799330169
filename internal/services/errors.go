package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures that are expected to clear on retry
	// (network drops, remote 5xx, timeouts).
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks deadline-exceeded failures; treated as transient by
	// the synchronizer but reported distinctly.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks permanently rejected input (remote 4xx, malformed
	// records). Never retried.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication marks AEAD verification failures. The payload is
	// presumed corrupted, not transiently unavailable; never retried.
	ErrAuthentication = errors.New("authentication failure")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups of absent items.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether an error should not be retried by the
// synchronizer regardless of remaining attempt budget.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrValidation)
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
