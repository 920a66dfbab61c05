// Package scoring implements code golf scoring: byte-length based scores
// relative to a challenge's running minimum, per-challenge rankings and the
// cross-challenge ladder.
//
// Every function here is pure. Callers own the running minimum and must
// serialise UpdateMinimum and ComputeScore per challenge.
package scoring

import (
	"fmt"
	"math/bits"
	"unicode/utf8"
)

// ByteLength returns the UTF-8 byte length of code.
func ByteLength(code string) (int, error) {
	if !utf8.ValidString(code) {
		return 0, fmt.Errorf("%w: code is not valid UTF-8", ErrInvalidInput)
	}
	return len(code), nil
}

// ComputeScore scales difficulty by minBytes/candidateBytes and rounds half
// away from zero. A candidate matching the minimum earns the full difficulty.
// A candidate shorter than minBytes (a stale minimum) is clamped to difficulty.
func ComputeScore(difficulty, minBytes, candidateBytes int) (int, error) {
	if difficulty <= 0 {
		return 0, fmt.Errorf("%w: difficulty %d must be positive", ErrInvalidInput, difficulty)
	}
	if minBytes <= 0 {
		return 0, fmt.Errorf("%w: minimum bytes %d must be positive", ErrInvalidInput, minBytes)
	}
	if candidateBytes <= 0 {
		return 0, fmt.Errorf("%w: byte length %d must be positive", ErrInvalidInput, candidateBytes)
	}
	if candidateBytes <= minBytes {
		return difficulty, nil
	}

	return roundRatio(uint64(difficulty), uint64(minBytes), uint64(candidateBytes)), nil
}

// roundRatio returns round(d*m/b) half away from zero using a 128-bit
// product. Requires m < b, so the quotient is below d and fits.
func roundRatio(d, m, b uint64) int {
	hi, lo := bits.Mul64(d, m)
	q, r := bits.Div64(hi, lo, b)
	if 2*r >= b {
		q++
	}
	return int(q)
}

// UpdateMinimum folds newBytes into the running minimum. A currentMin of zero
// means no submission has been accepted yet.
func UpdateMinimum(currentMin, newBytes int) (int, error) {
	if newBytes <= 0 {
		return 0, fmt.Errorf("%w: byte length %d must be positive", ErrInvalidInput, newBytes)
	}
	if currentMin < 0 {
		return 0, fmt.Errorf("%w: minimum %d must not be negative", ErrInvalidInput, currentMin)
	}
	if currentMin == 0 || newBytes < currentMin {
		return newBytes, nil
	}
	return currentMin, nil
}

// Evaluate applies UpdateMinimum and then ComputeScore for one candidate.
// It returns the score and the minimum the caller should commit.
func Evaluate(difficulty, currentMin, candidateBytes int) (score, newMin int, err error) {
	newMin, err = UpdateMinimum(currentMin, candidateBytes)
	if err != nil {
		return 0, 0, err
	}
	score, err = ComputeScore(difficulty, newMin, candidateBytes)
	if err != nil {
		return 0, 0, err
	}
	return score, newMin, nil
}
