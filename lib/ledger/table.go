package ledger

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteTable renders the entries as the `ps` table.
func WriteTable(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PID\tContainer ID\tImage\tCommand\tCreated"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.PID, e.ContainerID, e.Image, e.Command, e.Created); err != nil {
			return err
		}
	}
	return tw.Flush()
}
