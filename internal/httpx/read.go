// Package httpx holds helpers shared by the upstream HTTP clients.
package httpx

import (
	"errors"
	"io"
)

// ErrTooLarge is returned when a body exceeds the caller's limit.
var ErrTooLarge = errors.New("payload too large")

// ReadAllLimit reads r to the end, failing once more than limit bytes arrive.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrTooLarge
	}
	return b, nil
}
