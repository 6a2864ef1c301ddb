package cgroups

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFakeCgroupFS(t *testing.T, controllers ...string) (*Controller, string) {
	t.Helper()
	root := t.TempDir()

	const id = "test-container"
	for _, ctrl := range controllers {
		dir := filepath.Join(root, ctrl, subtree, id)
		require.NoError(t, os.MkdirAll(dir, 0755))
		// A real cgroup directory is born with its control files; the fake
		// filesystem has to pre-create them.
		files := []string{"tasks"}
		switch ctrl {
		case "cpu":
			files = append(files, "cpu.shares")
		case "memory":
			files = append(files, "memory.limit_in_bytes", "memory.memsw.limit_in_bytes")
		}
		for _, name := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
		}
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(root, log), root
}

func readControl(t *testing.T, root, controller, id, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, controller, subtree, id, file))
	require.NoError(t, err)
	return string(data)
}

func TestSetupCPUWritesPidAndShares(t *testing.T) {
	c, root := setupFakeCgroupFS(t, "cpu")

	require.NoError(t, c.SetupCPU("test-container", 4242, 512))

	assert.Equal(t, "4242", readControl(t, root, "cpu", "test-container", "tasks"))
	assert.Equal(t, "512", readControl(t, root, "cpu", "test-container", "cpu.shares"))
}

func TestSetupCPUZeroSharesInherits(t *testing.T) {
	c, root := setupFakeCgroupFS(t, "cpu")

	require.NoError(t, c.SetupCPU("test-container", 4242, 0))

	assert.Equal(t, "4242", readControl(t, root, "cpu", "test-container", "tasks"))
	// cpu.shares is left untouched.
	assert.Empty(t, readControl(t, root, "cpu", "test-container", "cpu.shares"))
}

func TestSetupMemoryLimits(t *testing.T) {
	c, root := setupFakeCgroupFS(t, "memory")

	memory := int64(64 << 20)
	swap := int64(-1)
	require.NoError(t, c.SetupMemory("test-container", 99, &memory, &swap))

	assert.Equal(t, "99", readControl(t, root, "memory", "test-container", "tasks"))
	assert.Equal(t, "67108864", readControl(t, root, "memory", "test-container", "memory.limit_in_bytes"))
	// -1 means unlimited swap and is written literally.
	assert.Equal(t, "-1", readControl(t, root, "memory", "test-container", "memory.memsw.limit_in_bytes"))
}

func TestSetupMemoryNilLimitsLeaveFilesUntouched(t *testing.T) {
	c, root := setupFakeCgroupFS(t, "memory")

	require.NoError(t, c.SetupMemory("test-container", 99, nil, nil))

	assert.Empty(t, readControl(t, root, "memory", "test-container", "memory.limit_in_bytes"))
	assert.Empty(t, readControl(t, root, "memory", "test-container", "memory.memsw.limit_in_bytes"))
}

func TestMissingControllerIsFatal(t *testing.T) {
	// No control files created: opening tasks fails like an unmounted
	// controller would.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(t.TempDir(), log)

	err := c.SetupCPU("test-container", 1, 512)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
