package overlay

import "errors"

var (
	// ErrUnsupported is returned when the kernel rejects the overlay fstype.
	ErrUnsupported = errors.New("overlayfs not supported by kernel")
	// ErrBusy is returned when the mountpoint already carries an overlay
	// from a previous attempt. There is no silent reuse within one run.
	ErrBusy = errors.New("container rootfs already mounted")
)
