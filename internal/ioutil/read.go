package ioutil

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTooLarge is returned by ReadBounded when the body exceeds its limit.
var ErrTooLarge = errors.New("body exceeds size limit")

// ReadBounded reads all of r, failing instead of truncating when r holds
// more than limit bytes.
func ReadBounded(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// Snippet returns at most limit bytes of r for error messages and logs,
// trimmed of surrounding whitespace. A read failure is described in place
// of the content.
func Snippet(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return strings.TrimSpace(string(body))
}
