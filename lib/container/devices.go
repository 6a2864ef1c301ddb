//go:build linux

package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anchor-run/anchor/lib/sys"
	"golang.org/x/sys/unix"
)

// device is one character device node the runtime creates on the container's
// /dev tmpfs.
type device struct {
	name  string
	major uint32
	minor uint32
}

var devices = []device{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"random", 1, 8},
	{"urandom", 1, 9},
	{"console", 136, 1},
	{"tty", 5, 0},
	{"full", 1, 7},
}

const deviceMode = 0o666 | unix.S_IFCHR

// populateDev fills the freshly mounted /dev tmpfs: the standard stream
// symlinks into /proc/self/fd, and the character devices a minimal
// userspace expects. Runs before pivot_root while the process still holds
// the privileges mknod requires.
func populateDev(devDir string) error {
	for i, name := range []string{"stdin", "stdout", "stderr"} {
		target := fmt.Sprintf("/proc/self/fd/%d", i)
		if err := os.Symlink(target, filepath.Join(devDir, name)); err != nil {
			return fmt.Errorf("create %s symlink: %w", name, err)
		}
	}
	if err := os.Symlink("/proc/self/fd", filepath.Join(devDir, "fd")); err != nil {
		return fmt.Errorf("create fd symlink: %w", err)
	}

	for _, dev := range devices {
		path := filepath.Join(devDir, dev.name)
		if err := sys.Mknod(path, deviceMode, dev.major, dev.minor); err != nil {
			return fmt.Errorf("create device %s: %w", dev.name, err)
		}
	}
	return nil
}
