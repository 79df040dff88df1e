package result

import (
	"fmt"
	"io"
)

// PrintRecord writes rec to w as plain "Label: value" lines, for terminals
// where the styled table is unwanted.
func PrintRecord(w io.Writer, rec Record) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	for _, f := range rec.Fields() {
		switch {
		case f.List && len(f.Values) == 0:
			writef("%s: (none)\n", f.Label)
		case f.List:
			writef("%s:\n", f.Label)
			for _, item := range f.Values {
				writef("  %s\n", item)
			}
		case f.Detail != "":
			writef("%s [%s]: %s\n", f.Label, f.Detail, f.Value)
		default:
			writef("%s: %s\n", f.Label, f.Value)
		}
	}
}

// PrintError writes a one-line report naming the failing URL and kind.
func PrintError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", err)
}
