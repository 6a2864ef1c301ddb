//go:build linux

package ledger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRow(pid int, id string) Row {
	return Row{
		PID:         pid,
		ContainerID: id,
		Image:       "ubuntu-export",
		Command:     []string{"/bin/sh", "-c", "exit 7"},
		CreatedAt:   time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local),
	}
}

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "containers.txt")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(path, log)
}

func TestRowLine(t *testing.T) {
	line := testRow(1234, "cid-1").Line()
	assert.Equal(t, "1234,cid-1,ubuntu-export,/bin/sh -c exit 7,09/03/2024 14:05:06", line)
}

func TestAppendThenRemove(t *testing.T) {
	l := setupLedger(t)
	row := testRow(1234, "cid-1")

	require.NoError(t, l.Append(row))

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1234", entries[0].PID)
	assert.Equal(t, "cid-1", entries[0].ContainerID)
	assert.Equal(t, "ubuntu-export", entries[0].Image)
	assert.Equal(t, "/bin/sh -c exit 7", entries[0].Command)
	assert.Equal(t, "09/03/2024 14:05:06", entries[0].Created)

	require.NoError(t, l.Remove(row))

	entries, err = l.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveKeepsOtherRows(t *testing.T) {
	l := setupLedger(t)
	first := testRow(1, "cid-1")
	second := testRow(2, "cid-2")

	require.NoError(t, l.Append(first))
	require.NoError(t, l.Append(second))
	require.NoError(t, l.Remove(first))

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cid-2", entries[0].ContainerID)
}

func TestRemoveMatchesFullLineOnly(t *testing.T) {
	l := setupLedger(t)
	row := testRow(1, "cid-1")
	similar := testRow(1, "cid-1")
	similar.Command = []string{"/bin/sh"}

	require.NoError(t, l.Append(row))
	require.NoError(t, l.Append(similar))
	require.NoError(t, l.Remove(row))

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/bin/sh", entries[0].Command)
}

func TestListMissingFile(t *testing.T) {
	l := setupLedger(t)
	entries, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveFromMissingFileCreatesEmptyLedger(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Remove(testRow(1, "cid-1")))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{
		{PID: "42", ContainerID: "cid-1", Image: "ubuntu-export", Command: "/bin/echo hello", Created: "09/03/2024 14:05:06"},
	}
	require.NoError(t, WriteTable(&buf, entries))

	out := buf.String()
	assert.Contains(t, out, "PID")
	assert.Contains(t, out, "Container ID")
	assert.Contains(t, out, "Image")
	assert.Contains(t, out, "Command")
	assert.Contains(t, out, "Created")
	assert.Contains(t, out, "/bin/echo hello")
}
