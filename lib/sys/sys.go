//go:build linux

// Package sys provides typed wrappers around the raw kernel facilities the
// runtime composes: mount(2), umount2(2), pivot_root(2), unshare(2),
// sethostname(2), mknod(2), and the credential drops. Every wrapper returns
// a *Error carrying the operation, the path it targeted, and the errno, so
// callers can branch on Kind() instead of matching message strings.
package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// Mount flag constants used by the containment sequence.
const (
	MS_NOSUID      = unix.MS_NOSUID
	MS_STRICTATIME = unix.MS_STRICTATIME
	MS_PRIVATE     = unix.MS_PRIVATE
	MS_REC         = unix.MS_REC
	MS_NODEV       = unix.MS_NODEV

	MNT_DETACH = unix.MNT_DETACH

	CLONE_NEWPID = unix.CLONE_NEWPID
	CLONE_NEWNS  = unix.CLONE_NEWNS
	CLONE_NEWUTS = unix.CLONE_NEWUTS
	CLONE_NEWNET = unix.CLONE_NEWNET
)

// Mount wraps mount(2).
func Mount(source, target, fstype string, flags uintptr, data string) error {
	if err := unix.Mount(source, target, fstype, flags, data); err != nil {
		return wrap("mount", target, err)
	}
	return nil
}

// Unmount wraps umount2(2).
func Unmount(target string, flags int) error {
	if err := unix.Unmount(target, flags); err != nil {
		return wrap("umount2", target, err)
	}
	return nil
}

// PivotRoot wraps pivot_root(2). newRoot must be a mount point and putOld
// must live underneath it.
func PivotRoot(newRoot, putOld string) error {
	if err := unix.PivotRoot(newRoot, putOld); err != nil {
		return wrap("pivot_root", newRoot, err)
	}
	return nil
}

// Unshare wraps unshare(2).
func Unshare(flags int) error {
	if err := unix.Unshare(flags); err != nil {
		return wrap("unshare", "", err)
	}
	return nil
}

// Sethostname wraps sethostname(2).
func Sethostname(name string) error {
	if err := unix.Sethostname([]byte(name)); err != nil {
		return wrap("sethostname", name, err)
	}
	return nil
}

// Mknod creates a device node at path. The device number is encoded from
// major/minor with makedev(3).
func Mknod(path string, mode uint32, major, minor uint32) error {
	if err := unix.Mknod(path, mode, int(unix.Mkdev(major, minor))); err != nil {
		return wrap("mknod", path, err)
	}
	return nil
}

// Setgid wraps setgid(2).
func Setgid(gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return wrap("setgid", "", err)
	}
	return nil
}

// Setuid wraps setuid(2).
func Setuid(uid int) error {
	if err := unix.Setuid(uid); err != nil {
		return wrap("setuid", "", err)
	}
	return nil
}

// Exec replaces the current process image, execvp-style. It never returns on
// success.
func Exec(path string, argv []string) error {
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return wrap("execve", path, err)
	}
	return nil
}

// Flock takes or releases an advisory lock on an open file descriptor.
func Flock(fd int, how int) error {
	if err := unix.Flock(fd, how); err != nil {
		return wrap("flock", "", err)
	}
	return nil
}

func wrap(op, path string, err error) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return &Error{Op: op, Path: path, Errno: unix.EIO}
	}
	return &Error{Op: op, Path: path, Errno: errno}
}
