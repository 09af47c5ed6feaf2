package output

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v as two-space indented JSON. HTML characters and
// non-ASCII text are written as-is.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
