//go:build linux

package images

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"
)

// validateEntryPath checks if a path from an archive is safe. We reject
// obviously malicious paths rather than silently sanitizing them, since a
// legitimate image should not contain path traversal attempts.
func validateEntryPath(name string) error {
	cleaned := filepath.Clean(name)

	if filepath.IsAbs(cleaned) || filepath.IsAbs(name) {
		return fmt.Errorf("%w: absolute path %q", ErrPathTraversal, name)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}

	return nil
}

// gzipMagic is the two-byte header of a gzip stream. Image tarballs may be
// plain or gzip-compressed; the reader is chosen by sniffing.
var gzipMagic = []byte{0x1f, 0x8b}

func openTarball(path string) (io.ReadCloser, *tar.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open tarball: %w", err)
	}

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read tarball header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("rewind tarball: %w", err)
	}

	if magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &gzipTarball{file: f, gz: gzr}, tar.NewReader(gzr), nil
	}

	return f, tar.NewReader(f), nil
}

type gzipTarball struct {
	file *os.File
	gz   *gzip.Reader
}

func (g *gzipTarball) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipTarball) Close() error {
	g.gz.Close()
	return g.file.Close()
}

// extractTarball unpacks an image tarball into destDir.
//
// Security considerations (runs with elevated privileges):
//  1. Path validation - rejects absolute paths and path traversal upfront
//  2. securejoin - safe path joining that resolves symlinks within the root
//  3. O_NOFOLLOW - prevents following symlinks when creating files
//
// Character and block device entries are skipped: device nodes in the
// container come from the runtime's own /dev population, never from the
// image. Ownership is applied as recorded in the archive when running as
// root; directory permissions are applied after all entries so a read-only
// directory does not block its own contents.
func extractTarball(tarPath, destDir string) error {
	rc, tr, err := openTarball(tarPath)
	if err != nil {
		return err
	}
	defer rc.Close()

	type dirMode struct {
		path string
		mode os.FileMode
	}
	var dirs []dirMode

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeChar, tar.TypeBlock:
			continue
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}

		if err := validateEntryPath(header.Name); err != nil {
			return err
		}

		targetPath, err := securejoin.SecureJoin(destDir, header.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPathTraversal, err)
		}

		mode := os.FileMode(header.Mode & 0o7777)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("create dir %s: %w", header.Name, err)
			}
			dirs = append(dirs, dirMode{path: targetPath, mode: mode})

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			if err := writeRegular(targetPath, mode, tr); err != nil {
				return fmt.Errorf("write file %s: %w", header.Name, err)
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			os.Remove(targetPath)
			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return fmt.Errorf("create symlink %s: %w", header.Name, err)
			}

		case tar.TypeLink:
			linkTarget, err := securejoin.SecureJoin(destDir, header.Linkname)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrPathTraversal, err)
			}
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			os.Remove(targetPath)
			if err := os.Link(linkTarget, targetPath); err != nil {
				return fmt.Errorf("create hard link %s: %w", header.Name, err)
			}

		case tar.TypeFifo:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			if err := unix.Mkfifo(targetPath, uint32(mode)); err != nil {
				return fmt.Errorf("create fifo %s: %w", header.Name, err)
			}

		default:
			continue
		}

		if err := applyOwnership(targetPath, header); err != nil {
			return err
		}
	}

	// Deepest first, so restoring a 0500 directory mode cannot block a
	// chmod on its children.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i].path) > len(dirs[j].path) })
	for _, d := range dirs {
		if err := os.Chmod(d.path, d.mode); err != nil {
			return fmt.Errorf("chmod dir %s: %w", d.path, err)
		}
	}

	return nil
}

func writeRegular(targetPath string, mode os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|syscall.O_NOFOLLOW, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile's mode is masked by the umask; restore the recorded bits.
	return os.Chmod(targetPath, mode)
}

// applyOwnership restores uid/gid from the archive. Only root may chown, so
// unprivileged extraction keeps the extractor's ownership, matching what the
// kernel would allow anyway.
func applyOwnership(targetPath string, header *tar.Header) error {
	if os.Geteuid() != 0 {
		return nil
	}
	if err := os.Lchown(targetPath, header.Uid, header.Gid); err != nil {
		return fmt.Errorf("chown %s: %w", header.Name, err)
	}
	return nil
}
