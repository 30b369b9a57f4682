package common

import (
	"fmt"
	"strings"
)

// ValidateID checks that id can stand as a single document path segment.
// name labels the id in the error, e.g. "client id".
func ValidateID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: %s %q contains '/'", ErrInvalidInput, name, id)
	}
	return nil
}
