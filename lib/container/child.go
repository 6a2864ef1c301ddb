//go:build linux

package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/anchor-run/anchor/lib/cgroups"
	"github.com/anchor-run/anchor/lib/images"
	"github.com/anchor-run/anchor/lib/overlay"
	"github.com/anchor-run/anchor/lib/paths"
	"github.com/anchor-run/anchor/lib/sys"
)

// RunChild is the child-side entry point, already inside the new PID, mount,
// UTS, and network namespaces. It executes the containment sequence and, on
// success, never returns: the process image is replaced by the user command.
func RunChild(ctx context.Context, log *slog.Logger) error {
	spec, err := readSpec()
	if err != nil {
		return fmt.Errorf("read child spec: %w", err)
	}
	return contain(ctx, spec, log)
}

func readSpec() (childSpec, error) {
	f := os.NewFile(uintptr(specFD), "child-spec")
	if f == nil {
		return childSpec{}, fmt.Errorf("spec pipe fd %d not inherited", specFD)
	}
	defer f.Close()
	return decodeSpec(f)
}

func decodeSpec(r io.Reader) (childSpec, error) {
	var spec childSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return childSpec{}, fmt.Errorf("decode spec: %w", err)
	}
	if spec.ContainerID == "" {
		return childSpec{}, fmt.Errorf("spec has no container id")
	}
	if len(spec.Command) == 0 {
		return childSpec{}, ErrNoCommand
	}
	return spec, nil
}

// contain builds the isolated execution environment and execs the user
// command. The order is load-bearing: cgroups need the host cgroup
// filesystem (gone after pivot_root), the private root propagation must
// precede every container mount, and the credential drop comes last before
// exec.
func contain(ctx context.Context, spec childSpec, log *slog.Logger) error {
	cg := cgroups.New(spec.CgroupRoot, log)
	if err := cg.SetupCPU(spec.ContainerID, os.Getpid(), spec.CPUShares); err != nil {
		return err
	}
	if err := cg.SetupMemory(spec.ContainerID, os.Getpid(), spec.Memory, spec.MemorySwap); err != nil {
		return err
	}

	if err := sys.WithCapabilityHint(sys.Sethostname(spec.ContainerID)); err != nil {
		return err
	}

	// Detach the whole mount tree from the host's propagation before any
	// container mount; on systems where / propagates shared the overlay
	// would otherwise leak into the host namespace.
	if err := sys.WithCapabilityHint(sys.Mount("", "/", "", sys.MS_PRIVATE|sys.MS_REC, "")); err != nil {
		return err
	}

	p := paths.New(spec.ImageDir, spec.ContainerDir)
	imageRoot, err := images.NewManager(p, log).EnsureExtracted(ctx, spec.ImageName)
	if err != nil {
		return err
	}

	newRoot, err := overlay.MountContainerRoot(p, log, imageRoot, spec.ContainerID)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "created container root fs", "id", spec.ContainerID, "rootfs", newRoot)

	if err := createMounts(newRoot); err != nil {
		return err
	}

	if err := populateDev(filepath.Join(newRoot, "dev")); err != nil {
		return err
	}

	if err := pivotInto(newRoot); err != nil {
		return err
	}

	if spec.User != "" {
		if err := dropPrivileges(spec.User); err != nil {
			return err
		}
	}

	return execCommand(spec.Command)
}

// createMounts attaches the pseudo-filesystems the contained process needs:
// process info, kernel state, a fresh device tree, and terminals.
func createMounts(newRoot string) error {
	procDir := filepath.Join(newRoot, "proc")
	sysDir := filepath.Join(newRoot, "sys")
	devDir := filepath.Join(newRoot, "dev")
	for _, dir := range []string{procDir, sysDir, devDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create mountpoint: %w", err)
		}
	}

	if err := sys.Mount("proc", procDir, "proc", 0, ""); err != nil {
		return err
	}
	if err := sys.Mount("sysfs", sysDir, "sysfs", 0, ""); err != nil {
		return err
	}
	if err := sys.Mount("tmpfs", devDir, "tmpfs", sys.MS_NOSUID|sys.MS_STRICTATIME, "mode=755"); err != nil {
		return err
	}

	devptsDir := filepath.Join(devDir, "pts")
	if err := os.MkdirAll(devptsDir, 0755); err != nil {
		return fmt.Errorf("create devpts dir: %w", err)
	}
	return sys.Mount("devpts", devptsDir, "devpts", 0, "")
}

// pivotInto swaps the process root onto the merged overlay and drops the old
// root, definitively detaching the container from the host mount tree.
func pivotInto(newRoot string) error {
	oldRoot := filepath.Join(newRoot, "old_root")
	if err := os.MkdirAll(oldRoot, 0755); err != nil {
		return fmt.Errorf("create old_root: %w", err)
	}

	if err := sys.PivotRoot(newRoot, oldRoot); err != nil {
		return err
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir to new root: %w", err)
	}
	if err := sys.Unmount("/old_root", sys.MNT_DETACH); err != nil {
		return err
	}
	if err := os.Remove("/old_root"); err != nil {
		return fmt.Errorf("remove old_root: %w", err)
	}
	return nil
}

func execCommand(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecFailed, err)
	}
	if err := sys.Exec(path, argv); err != nil {
		return fmt.Errorf("%w: %v", ErrExecFailed, err)
	}
	return nil
}
