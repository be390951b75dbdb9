// Package version compares the major.minor.patch version strings that nodes
// advertise.
package version

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidRef     = errors.New("invalid ref")
	ErrInvalidVersion = errors.New("invalid version")
)

// Cmp is the outcome of comparing two versions. The ordering reflects the
// severity of the difference.
type Cmp int

const (
	Identical Cmp = iota
	PatchMismatch
	MinorMismatch
	MajorMismatch
)

func (c Cmp) String() string {
	switch c {
	case Identical:
		return "identical"
	case PatchMismatch:
		return "patch mismatch"
	case MinorMismatch:
		return "minor mismatch"
	case MajorMismatch:
		return "major mismatch"
	}
	return "Cmp(" + strconv.Itoa(int(c)) + ")"
}

// Compare reports the most significant component in which v differs from ref.
// Both strings need at least three dot separated components; anything past the
// third is ignored.
func Compare(ref, v string) (Cmp, error) {
	r := strings.Split(ref, ".")
	if len(r) < 3 {
		return 0, ErrInvalidRef
	}
	w := strings.Split(v, ".")
	if len(w) < 3 {
		return 0, ErrInvalidVersion
	}
	if !sameNumber(r[0], w[0]) {
		return MajorMismatch, nil
	}
	if !sameNumber(r[1], w[1]) {
		return MinorMismatch, nil
	}
	if !sameNumber(r[2], w[2]) {
		return PatchMismatch, nil
	}
	return Identical, nil
}

// sameNumber compares the leading decimal integers of a and b. A component
// without leading digits never matches, not even itself.
func sameNumber(a, b string) bool {
	x, ok := leadingInt(a)
	if !ok {
		return false
	}
	y, ok := leadingInt(b)
	if !ok {
		return false
	}
	return x == y
}

// leadingInt parses an optionally signed run of digits at the start of s,
// so "3-beta" yields 3.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
