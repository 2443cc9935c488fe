package validation

import (
	"strconv"
	"strings"
)

const (
	MaxLimit = 100

	MsgInvalidLimit = "limit must be an integer greater than 0 and less than 100"
)

var ErrInvalidLimit = newError(MsgInvalidLimit)

// ParseLimit validates an optional limit query parameter. An empty value
// yields fallback.
func ParseLimit(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxLimit {
		return 0, ErrInvalidLimit
	}
	return n, nil
}
