package cgroups

import "errors"

// ErrUnavailable is returned when a requested cgroup controller cannot be
// entered (not mounted, or permission denied).
var ErrUnavailable = errors.New("cgroup controller unavailable")
