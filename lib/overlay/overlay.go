//go:build linux

// Package overlay assembles the per-container copy-on-write workspace: a
// writable upper directory stacked over the shared read-only image layer,
// presented at the container's merged rootfs mountpoint.
package overlay

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/anchor-run/anchor/lib/paths"
	"github.com/anchor-run/anchor/lib/sys"
	"golang.org/x/sys/unix"
)

// MountContainerRoot creates the container's upper, work, and merged
// directories and mounts an overlay filesystem at the merged path. The work
// dir must be empty and on the same filesystem as the upper dir, which the
// fixed sibling layout guarantees.
func MountContainerRoot(p *paths.Paths, log *slog.Logger, imageRoot, containerID string) (string, error) {
	merged := p.ContainerRootfs(containerID)
	upper := p.ContainerUpperDir(containerID)
	work := p.ContainerWorkDir(containerID)

	for _, dir := range []string{upper, work, merged} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create overlay dir: %w", err)
		}
	}

	data := overlayData(imageRoot, upper, work)
	// MS_NODEV keeps device nodes inside the merged tree inert; the runtime
	// provides the container's devices on its own /dev tmpfs.
	if err := sys.Mount("overlay", merged, "overlay", sys.MS_NODEV, data); err != nil {
		var se *sys.Error
		if errors.As(err, &se) {
			switch se.Errno {
			case unix.EINVAL, unix.ENODEV:
				return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
			case unix.EBUSY:
				return "", fmt.Errorf("%w: %v", ErrBusy, err)
			}
		}
		return "", fmt.Errorf("mount overlay at %s: %w", merged, err)
	}

	log.Debug("mounted container rootfs", "id", containerID, "merged", merged, "lower", imageRoot)
	return merged, nil
}

func overlayData(lower, upper, work string) string {
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work)
}
