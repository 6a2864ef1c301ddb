//go:build linux

package sys

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies a syscall failure for callers that need to branch without
// caring about the exact errno.
type Kind int

const (
	KindOther Kind = iota
	KindPermissionDenied
	KindNotFound
	KindBusy
	KindExists
	KindInvalid
)

// Error is a failed syscall. Errno is always populated so callers match on
// it rather than on formatted messages.
type Error struct {
	Op    string
	Path  string
	Errno unix.Errno
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Errno.Error())
}

func (e *Error) Unwrap() error { return e.Errno }

// Kind maps the errno to a coarse failure class.
func (e *Error) Kind() Kind {
	switch e.Errno {
	case unix.EPERM, unix.EACCES:
		return KindPermissionDenied
	case unix.ENOENT:
		return KindNotFound
	case unix.EBUSY:
		return KindBusy
	case unix.EEXIST:
		return KindExists
	case unix.EINVAL:
		return KindInvalid
	default:
		return KindOther
	}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, KindOther
// otherwise.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind()
	}
	return KindOther
}

// WithCapabilityHint decorates permission failures from namespace and mount
// syscalls with the operator-facing remedy. Other errors pass through
// untouched.
func WithCapabilityHint(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindPermissionDenied {
		return fmt.Errorf("%w: requires CAP_SYS_ADMIN (try with sudo)", err)
	}
	return err
}
