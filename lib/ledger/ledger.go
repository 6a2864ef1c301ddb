//go:build linux

// Package ledger maintains the running-container record file: one CSV line
// per live container, appended before the parent waits and removed after.
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anchor-run/anchor/lib/sys"
	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

// Ledger is the process-wide running-container file. Appends are single
// complete-line O_APPEND writes; removal rewrites through a tempfile and
// rename under an advisory lock, so concurrent launches cannot interleave
// half-written rows.
type Ledger struct {
	path string
	log  *slog.Logger
}

// New creates a Ledger backed by the file at path.
func New(path string, log *slog.Logger) *Ledger {
	return &Ledger{path: path, log: log}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Append writes the row to the end of the ledger as one complete line.
func (l *Ledger) Append(r Row) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(r.Line() + "\n"); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	return nil
}

// Remove deletes every line equal to the row's rendering. Other rows are
// preserved byte-for-byte.
func (l *Ledger) Remove(r Row) error {
	target := r.Line()

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if err := sys.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer sys.Flock(int(f.Fd()), unix.LOCK_UN)

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	kept := lo.Filter(splitLines(string(data)), func(line string, _ int) bool {
		return line != target
	})

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".containers-*")
	if err != nil {
		return fmt.Errorf("create ledger tempfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	for _, line := range kept {
		if _, err := tmp.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("write ledger tempfile: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger tempfile: %w", err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// List parses every ledger line into an Entry.
func (l *Ledger) List() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	return lo.Map(splitLines(string(data)), func(line string, _ int) Entry {
		return parseLine(line)
	}), nil
}

func splitLines(data string) []string {
	lines := strings.Split(data, "\n")
	return lo.Filter(lines, func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
}
