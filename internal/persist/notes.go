package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// WriteText writes text to path byte for byte.
func WriteText(path, text string) error {
	return WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// WriteJSON validates raw and writes it indented with two spaces and a trailing newline.
func WriteJSON(path string, raw []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	out.WriteByte('\n')

	return WriteFile(path, func(w io.Writer) error {
		_, err := w.Write(out.Bytes())
		return err
	})
}
