// SPDX-License-Identifier: Apache-2.0

// Package interpret evaluates ordered sets of diagnostic rules against a
// snapshot of observations and reports every rule that matches.
package interpret

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is returned when a range table, rule or rule set is
	// malformed. It is only raised at construction time.
	ErrConfiguration = errors.New("configuration error")

	// ErrKeyNotFound is returned when a required observation or range key is
	// absent.
	ErrKeyNotFound = errors.New("key not found")
)

// Level is the position of a value relative to a reference interval.
type Level int

const (
	Below Level = iota + 1
	Within
	Above
)

func (l Level) String() string {
	switch l {
	case Below:
		return "below"
	case Within:
		return "within"
	case Above:
		return "above"
	}
	return "unknown"
}

// ParseLevel accepts the canonical level names and the low/normal/high
// vocabulary used in lab reports. "prolonged" is an alias for above.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "below", "low":
		return Below, nil
	case "within", "normal":
		return Within, nil
	case "above", "high", "prolonged":
		return Above, nil
	}
	return 0, fmt.Errorf("%w: unknown level %q", ErrConfiguration, s)
}
