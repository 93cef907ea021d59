// SPDX-License-Identifier: Apache-2.0

package interpret

import (
	"fmt"
	"math"
	"sort"
)

// Interval is a closed reference interval [Low, High].
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Unit string  `json:"unit,omitempty"`
}

// Classify places v below, within or above the interval. Both bounds are
// inside the interval.
func (i Interval) Classify(v float64) Level {
	if v < i.Low {
		return Below
	}
	if v > i.High {
		return Above
	}
	return Within
}

// Classify is the free-function form of Interval.Classify.
func Classify(v float64, i Interval) Level {
	return i.Classify(v)
}

// RangeTable maps observation keys to their reference intervals. It is
// read-only after construction and safe for concurrent use.
type RangeTable struct {
	ranges map[string]Interval
}

// NewRangeTable copies ranges into a new table. Every interval must satisfy
// Low <= High.
func NewRangeTable(ranges map[string]Interval) (*RangeTable, error) {
	t := &RangeTable{ranges: make(map[string]Interval, len(ranges))}
	for key, iv := range ranges {
		if key == "" {
			return nil, fmt.Errorf("%w: range with empty key", ErrConfiguration)
		}
		if math.IsNaN(iv.Low) || math.IsNaN(iv.High) {
			return nil, fmt.Errorf("%w: range %q has a NaN bound", ErrConfiguration, key)
		}
		if iv.Low > iv.High {
			return nil, fmt.Errorf("%w: range %q has low %g > high %g", ErrConfiguration, key, iv.Low, iv.High)
		}
		t.ranges[key] = iv
	}
	return t, nil
}

// RangeFor returns the interval for key. A nil table has no ranges.
func (t *RangeTable) RangeFor(key string) (Interval, error) {
	if t == nil {
		return Interval{}, fmt.Errorf("%w: no reference range for %q", ErrKeyNotFound, key)
	}
	iv, ok := t.ranges[key]
	if !ok {
		return Interval{}, fmt.Errorf("%w: no reference range for %q", ErrKeyNotFound, key)
	}
	return iv, nil
}

// Keys returns the table keys in lexical order.
func (t *RangeTable) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.ranges))
	for k := range t.ranges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *RangeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ranges)
}
