// Package cgroups places a container into per-container cpu and memory
// cgroups (v1 hybrid layout) and writes its resource limits. Both setups run
// inside the cloned child before pivot_root, while the host cgroup
// filesystem is still reachable.
package cgroups

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultRoot is the cgroup v1 filesystem root on the host.
const DefaultRoot = "/sys/fs/cgroup"

// subtree is the cgroup directory all anchor containers live under.
const subtree = "anchor"

// Controller creates per-container cgroup nodes under a cgroup filesystem
// root. The root is injectable so tests can run against a plain directory.
type Controller struct {
	root string
	log  *slog.Logger
}

// New creates a Controller rooted at the given cgroup filesystem path.
func New(root string, log *slog.Logger) *Controller {
	if root == "" {
		root = DefaultRoot
	}
	return &Controller{root: root, log: log}
}

// SetupCPU creates the container's cpu cgroup, moves pid into it, and writes
// cpu.shares when shares is non-zero. Zero means "inherit".
func (c *Controller) SetupCPU(containerID string, pid, shares int) error {
	dir, err := c.enter("cpu", containerID, pid)
	if err != nil {
		return err
	}

	if shares != 0 {
		if err := writeControl(filepath.Join(dir, "cpu.shares"), strconv.Itoa(shares)); err != nil {
			return fmt.Errorf("set cpu.shares: %w", err)
		}
		c.log.Debug("applied cpu limit", "id", containerID, "cpu_shares", shares)
	}

	return nil
}

// SetupMemory creates the container's memory cgroup, moves pid into it, and
// writes the given limits. A nil limit is left unset; a memorySwap of -1 is
// written literally and means unlimited swap.
func (c *Controller) SetupMemory(containerID string, pid int, memory, memorySwap *int64) error {
	dir, err := c.enter("memory", containerID, pid)
	if err != nil {
		return err
	}

	if memory != nil {
		if err := writeControl(filepath.Join(dir, "memory.limit_in_bytes"), strconv.FormatInt(*memory, 10)); err != nil {
			return fmt.Errorf("set memory.limit_in_bytes: %w", err)
		}
		c.log.Debug("applied memory limit", "id", containerID, "memory", *memory)
	}
	if memorySwap != nil {
		if err := writeControl(filepath.Join(dir, "memory.memsw.limit_in_bytes"), strconv.FormatInt(*memorySwap, 10)); err != nil {
			return fmt.Errorf("set memory.memsw.limit_in_bytes: %w", err)
		}
		c.log.Debug("applied memory+swap limit", "id", containerID, "memory_swap", *memorySwap)
	}

	return nil
}

// enter creates the per-container node under the named controller and writes
// pid to its tasks file. The pid must be in the tasks file before any limit
// write takes effect for it.
func (c *Controller) enter(controller, containerID string, pid int) (string, error) {
	dir := filepath.Join(c.root, controller, subtree, containerID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create %s cgroup: %v", ErrUnavailable, controller, err)
	}

	if err := writeControl(filepath.Join(dir, "tasks"), strconv.Itoa(pid)); err != nil {
		// EPERM or ENOENT here means the controller is absent or off-limits;
		// the container must not launch without the requested limit.
		return "", fmt.Errorf("%w: join %s cgroup: %v", ErrUnavailable, controller, err)
	}

	return dir, nil
}

// writeControl performs the single-shot write cgroup control files expect.
func writeControl(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
