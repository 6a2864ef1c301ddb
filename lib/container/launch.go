//go:build linux

// Package container implements the runtime core: the parent-side launcher
// that clones a child into fresh PID, mount, UTS, and network namespaces,
// and the child-side containment sequence that builds the isolated root and
// execs the user command.
package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/anchor-run/anchor/lib/ledger"
	"github.com/google/uuid"
)

// ChildCommand is the internal subcommand the launcher re-execs itself with.
// Go cannot survive a raw clone(2) into an arbitrary function, so the child
// entry is a fresh copy of this binary started with the namespace clone
// flags; its spec arrives as JSON on specFD.
const ChildCommand = "child-init"

// specFD is the file descriptor number the child reads its spec from. Fd 3
// is the first ExtraFiles slot.
const specFD = 3

const cloneFlags = syscall.CLONE_NEWPID | syscall.CLONE_NEWNS |
	syscall.CLONE_NEWUTS | syscall.CLONE_NEWNET

// Launch runs one container to completion: mint an identity, clone the
// child, record it in the ledger, and wait. The returned RawStatus is the
// child's undecoded wait status.
func Launch(ctx context.Context, spec LaunchSpec, led *ledger.Ledger, log *slog.Logger) (Result, error) {
	if len(spec.Command) == 0 {
		return Result{}, ErrNoCommand
	}

	containerID := uuid.NewString()
	log.InfoContext(ctx, "launching container", "id", containerID, "image", spec.ImageName, "command", spec.Command)

	specR, specW, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("create spec pipe: %w", err)
	}
	defer specR.Close()

	cmd := exec.Command("/proc/self/exe", ChildCommand)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{specR}
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: cloneFlags}

	if err := cmd.Start(); err != nil {
		specW.Close()
		if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			return Result{}, fmt.Errorf("clone with new namespaces: %w: requires CAP_SYS_ADMIN (try with sudo)", err)
		}
		return Result{}, fmt.Errorf("clone child: %w", err)
	}

	// The child's copy of the read end is inherited; give up ours and hand
	// the spec over. A write error here is fatal for the child, which will
	// fail decoding and exit 1; the parent still waits below.
	specR.Close()
	encodeErr := json.NewEncoder(specW).Encode(childSpec{LaunchSpec: spec, ContainerID: containerID})
	specW.Close()
	if encodeErr != nil {
		log.ErrorContext(ctx, "failed to send spec to child", "id", containerID, "error", encodeErr)
	}

	row := ledger.Row{
		PID:         cmd.Process.Pid,
		ContainerID: containerID,
		Image:       spec.ImageName,
		Command:     spec.Command,
		CreatedAt:   time.Now(),
	}
	// Ledger trouble must not take the container down with it.
	if err := led.Append(row); err != nil {
		log.ErrorContext(ctx, "failed to record container", "id", containerID, "error", err)
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{}, fmt.Errorf("wait for child: %w", waitErr)
		}
	}

	if err := led.Remove(row); err != nil {
		log.ErrorContext(ctx, "failed to remove container record", "id", containerID, "error", err)
	}

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return Result{}, fmt.Errorf("unexpected wait status type %T", cmd.ProcessState.Sys())
	}

	return Result{PID: cmd.Process.Pid, RawStatus: int(ws)}, nil
}
