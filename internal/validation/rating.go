package validation

import (
	"math"
	"strconv"
	"strings"
)

const (
	MinRating = 1
	MaxRating = 5

	MsgInvalidRating = "rating must be an integer between 1 and 5"
)

// ErrInvalidRating is returned for any rating outside [1,5] or not integral.
var ErrInvalidRating = newError(MsgInvalidRating)

// ParseRating validates a rating taken from a query string.
func ParseRating(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < MinRating || n > MaxRating {
		return 0, ErrInvalidRating
	}
	return n, nil
}

// BodyRating validates a rating decoded from a JSON body. An absent rating
// or a rating of 0 means "no rating" and yields 0 without error.
func BodyRating(v any) (int, error) {
	var n int
	switch r := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if r != math.Trunc(r) || math.IsInf(r, 0) {
			return 0, ErrInvalidRating
		}
		n = int(r)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return 0, ErrInvalidRating
		}
		n = parsed
	default:
		return 0, ErrInvalidRating
	}

	if n == 0 {
		return 0, nil
	}
	if n < MinRating || n > MaxRating {
		return 0, ErrInvalidRating
	}
	return n, nil
}
