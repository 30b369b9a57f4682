package storage

import (
	"fmt"
	"strings"
)

// Join builds a slash-separated path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// splitDocumentPath returns the parent collection and id of a document path.
func splitDocumentPath(path string) (parent, id string, err error) {
	segments, err := splitPath(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is a collection path", ErrInvalidPath, path)
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

func validateCollectionPath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is a document path", ErrInvalidPath, path)
	}
	return nil
}
