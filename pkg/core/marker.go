package core

import (
	"strings"
)

// Marker is an opaque, totally ordered position in the source's change history.
type Marker string

// String returns the marker text.
func (m Marker) String() string {
	return string(m)
}

// IsZero reports whether the marker is empty.
func (m Marker) IsZero() bool {
	return m == ""
}

// Compare returns -1, 0 or +1.
// Markers that are both decimal integers compare numerically at any width;
// all other pairs compare lexicographically.
func (m Marker) Compare(other Marker) int {
	a, aok := decimal(string(m))
	b, bok := decimal(string(other))
	if !aok || !bok {
		return strings.Compare(string(m), string(other))
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Equal reports whether both markers denote the same position.
func (m Marker) Equal(other Marker) bool {
	return m.Compare(other) == 0
}

// Before reports whether m is strictly earlier than other.
func (m Marker) Before(other Marker) bool {
	return m.Compare(other) < 0
}

// decimal returns s without leading zeros if it is an unsigned decimal integer.
func decimal(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	return s, true
}
