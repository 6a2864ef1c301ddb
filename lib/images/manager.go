// Package images manages the shared read-only image layer: locating an
// image tarball and extracting it exactly once into a rootfs directory that
// every container built from that image mounts as its overlay lower layer.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/anchor-run/anchor/lib/paths"
)

// Manager handles image rootfs lifecycle operations.
type Manager interface {
	// EnsureExtracted returns the path to the image's extracted rootfs,
	// extracting the tarball first if no rootfs exists yet. Once extracted,
	// the rootfs is treated as immutable and reused across containers.
	EnsureExtracted(ctx context.Context, name string) (string, error)
}

type manager struct {
	paths *paths.Paths
	log   *slog.Logger
}

// NewManager creates a new image manager.
func NewManager(p *paths.Paths, log *slog.Logger) Manager {
	return &manager{paths: p, log: log}
}

func (m *manager) EnsureExtracted(ctx context.Context, name string) (string, error) {
	tarball := m.paths.ImageTarball(name)
	imageRoot := m.paths.ImageRootfs(name)

	if _, err := os.Stat(tarball); err != nil {
		return "", fmt.Errorf("unable to locate image %s: %w", name, ErrNotFound)
	}

	// Keep only one rootfs per image and re-use it. A second caller must not
	// reopen the tarball.
	if _, err := os.Stat(imageRoot); err == nil {
		m.log.DebugContext(ctx, "reusing extracted image rootfs", "image", name, "rootfs", imageRoot)
		return imageRoot, nil
	}

	m.log.InfoContext(ctx, "extracting image", "image", name, "tarball", tarball, "rootfs", imageRoot)

	if err := os.MkdirAll(imageRoot, 0755); err != nil {
		return "", fmt.Errorf("create image rootfs dir: %w", err)
	}
	if err := extractTarball(tarball, imageRoot); err != nil {
		// A half-written lower layer must not be mistaken for a complete one
		// on the next run.
		os.RemoveAll(imageRoot)
		return "", fmt.Errorf("extract image %s: %w", name, err)
	}

	return imageRoot, nil
}
