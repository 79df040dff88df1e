package result

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteJSON writes rec as indented JSON. Keys follow the record's field
// declaration order and HTML in tag strings is left unescaped.
func WriteJSON(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteText writes rec as one labeled block per field:
//
//	KEY
//	-------------
//	value
//
// List fields are written as " - item" lines.
func WriteText(w io.Writer, rec Record) error {
	bw := bufio.NewWriter(w)
	for _, f := range rec.Fields() {
		bw.WriteString(strings.ToUpper(f.Key))
		bw.WriteByte('\n')
		bw.WriteString(strings.Repeat("-", len(f.Key)+10))
		bw.WriteByte('\n')
		if f.List {
			for _, item := range f.Values {
				fmt.Fprintf(bw, " - %s\n", item)
			}
		} else {
			bw.WriteString(textValue(f))
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text output: %w", err)
	}
	return nil
}

// textValue folds a numeric detail column into the value line.
func textValue(f Field) string {
	if _, err := strconv.Atoi(f.Detail); err == nil {
		return fmt.Sprintf("%s (%s)", f.Value, f.Detail)
	}
	return f.Value
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
