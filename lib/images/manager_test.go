//go:build linux

package images

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/anchor-run/anchor/lib/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	header *tar.Header
	body   string
}

func fileEntry(name, body string, mode int64) tarEntry {
	return tarEntry{
		header: &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     mode,
			Size:     int64(len(body)),
		},
		body: body,
	}
}

func dirEntry(name string, mode int64) tarEntry {
	return tarEntry{header: &tar.Header{Typeflag: tar.TypeDir, Name: name, Mode: mode}}
}

func writeTarball(t *testing.T, path string, compress bool, entries ...tarEntry) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.WriteCloser = f
	if compress {
		w = gzip.NewWriter(f)
	}

	tw := tar.NewWriter(w)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(e.header))
		if e.body != "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	if compress {
		require.NoError(t, w.Close())
	}
}

func setupTestManager(t *testing.T) (Manager, *paths.Paths) {
	t.Helper()
	tmpDir := t.TempDir()
	p := paths.New(filepath.Join(tmpDir, "images"), filepath.Join(tmpDir, "containers"))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "images"), 0755))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(p, log), p
}

func TestEnsureExtractedUnpacksTarball(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("base"), false,
		dirEntry("etc", 0755),
		fileEntry("etc/hostname", "anchor\n", 0644),
		fileEntry("bin/sh", "#!/bin/sh\n", 0755),
	)

	root, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, p.ImageRootfs("base"), root)

	data, err := os.ReadFile(filepath.Join(root, "etc", "hostname"))
	require.NoError(t, err)
	assert.Equal(t, "anchor\n", string(data))

	info, err := os.Stat(filepath.Join(root, "bin", "sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestEnsureExtractedReusesRootfs(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("base"), false, fileEntry("marker", "v1", 0644))

	first, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)

	// Replace the tarball with garbage: a second call must not open it.
	require.NoError(t, os.WriteFile(p.ImageTarball("base"), []byte("not a tarball"), 0644))

	second, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(second, "marker"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestEnsureExtractedMissingTarball(t *testing.T) {
	m, _ := setupTestManager(t)

	_, err := m.EnsureExtracted(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "unable to locate image does-not-exist")
}

func TestEnsureExtractedRejectsPathTraversal(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("evil"), false,
		fileEntry("../evil", "pwned", 0644),
	)

	_, err := m.EnsureExtracted(ctx, "evil")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTraversal)

	// The escaping file must not exist, and the partial rootfs is removed.
	_, statErr := os.Stat(filepath.Join(p.ImageRootfs("evil"), "..", "evil"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(p.ImageRootfs("evil"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureExtractedSkipsDeviceEntries(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("base"), false,
		dirEntry("dev", 0755),
		tarEntry{header: &tar.Header{
			Typeflag: tar.TypeChar, Name: "dev/null", Mode: 0666,
			Devmajor: 1, Devminor: 3,
		}},
		tarEntry{header: &tar.Header{
			Typeflag: tar.TypeBlock, Name: "dev/sda", Mode: 0660,
			Devmajor: 8, Devminor: 0,
		}},
		fileEntry("dev/after", "still extracted", 0644),
	)

	root, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "dev", "null"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "dev", "sda"))
	assert.True(t, os.IsNotExist(statErr))

	data, err := os.ReadFile(filepath.Join(root, "dev", "after"))
	require.NoError(t, err)
	assert.Equal(t, "still extracted", string(data))
}

func TestEnsureExtractedPreservesLinks(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("base"), false,
		dirEntry("bin", 0755),
		fileEntry("bin/busybox", "binary", 0755),
		tarEntry{header: &tar.Header{
			Typeflag: tar.TypeLink, Name: "bin/sh", Linkname: "bin/busybox", Mode: 0755,
		}},
		tarEntry{header: &tar.Header{
			Typeflag: tar.TypeSymlink, Name: "etc/mtab", Linkname: "/proc/self/mounts", Mode: 0777,
		}},
	)

	root, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "bin", "sh"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	target, err := os.Readlink(filepath.Join(root, "etc", "mtab"))
	require.NoError(t, err)
	assert.Equal(t, "/proc/self/mounts", target)
}

func TestEnsureExtractedHandlesGzipTarball(t *testing.T) {
	m, p := setupTestManager(t)
	ctx := context.Background()

	writeTarball(t, p.ImageTarball("base"), true, fileEntry("hello", "world", 0644))

	root, err := m.EnsureExtracted(ctx, "base")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "hello"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestValidateEntryPath(t *testing.T) {
	assert.NoError(t, validateEntryPath("usr/bin/env"))
	assert.NoError(t, validateEntryPath("./relative"))
	assert.ErrorIs(t, validateEntryPath("../evil"), ErrPathTraversal)
	assert.ErrorIs(t, validateEntryPath("a/../../evil"), ErrPathTraversal)
	assert.ErrorIs(t, validateEntryPath("/etc/passwd"), ErrPathTraversal)
}
