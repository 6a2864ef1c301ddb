package container

import "errors"

var (
	// ErrInvalidUser is returned when a --user value does not parse as
	// UID or UID:GID with non-negative integers.
	ErrInvalidUser = errors.New("user and group have to be non-negative numeric values")
	// ErrExecFailed is returned when the user command cannot be executed.
	ErrExecFailed = errors.New("exec failed")
	// ErrNoCommand is returned when a launch is requested without a command.
	ErrNoCommand = errors.New("no command given")
)
