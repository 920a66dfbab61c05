package scoring

import "errors"

// ErrInvalidInput reports a non-positive difficulty or byte length, invalid
// UTF-8, an empty handle or a ranking set spanning several challenges.
var ErrInvalidInput = errors.New("invalid input")
