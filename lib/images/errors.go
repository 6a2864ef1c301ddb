package images

import "errors"

var (
	// ErrNotFound is returned when no tarball exists for the requested image.
	ErrNotFound = errors.New("image not found")
	// ErrPathTraversal is returned when a tar entry tries to escape the
	// extraction root.
	ErrPathTraversal = errors.New("path traversal in tar file")
)
