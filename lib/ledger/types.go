package ledger

import (
	"strconv"
	"strings"
	"time"
)

// timeLayout is the ledger's creation-timestamp format, local time.
const timeLayout = "02/01/2006 15:04:05"

// Row is one running-container record. A row exists in the ledger iff the
// corresponding child is alive and being awaited.
type Row struct {
	PID         int
	ContainerID string
	Image       string
	Command     []string
	CreatedAt   time.Time
}

// Line renders the row as its single CSV ledger line, without trailing
// newline. Removal matches on this exact rendering.
func (r Row) Line() string {
	fields := []string{
		strconv.Itoa(r.PID),
		r.ContainerID,
		r.Image,
		strings.Join(r.Command, " "),
		r.CreatedAt.Format(timeLayout),
	}
	return strings.Join(fields, ",")
}

// Entry is a parsed ledger line, as shown by `ps`. The row shape is
// ambiguous when the original command contained commas: Command then ends at
// the command's first comma, and the rest of the command stays in Created
// ahead of the timestamp.
type Entry struct {
	PID         string
	ContainerID string
	Image       string
	Command     string
	Created     string
}

func parseLine(line string) Entry {
	parts := strings.SplitN(line, ",", 5)
	var e Entry
	switch {
	case len(parts) >= 5:
		e.Created = parts[4]
		fallthrough
	case len(parts) == 4:
		e.Command = parts[3]
		fallthrough
	case len(parts) == 3:
		e.Image = parts[2]
		fallthrough
	case len(parts) == 2:
		e.ContainerID = parts[1]
		fallthrough
	default:
		e.PID = parts[0]
	}
	return e
}
