// SPDX-License-Identifier: Apache-2.0

package interpret

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Observation is a snapshot of observed values that can be interpolated into
// interpretation templates.
type Observation interface {
	// Field renders the value named by tag, reporting false when the
	// observation has no such value.
	Field(tag string) (string, bool)
}

// Labs is a set of numeric observations keyed by test name (hgb, mcv, ...).
type Labs map[string]float64

// Value returns the observation for a key the caller requires to be present.
func (l Labs) Value(key string) (float64, error) {
	v, ok := l[key]
	if !ok {
		return 0, fmt.Errorf("%w: observation %q is required", ErrKeyNotFound, key)
	}
	return v, nil
}

// Optional returns the observation for key when present.
func (l Labs) Optional(key string) (float64, bool) {
	v, ok := l[key]
	return v, ok
}

// Field renders a numeric value with one decimal. A tag of the form
// "key:N" renders N decimals instead.
func (l Labs) Field(tag string) (string, bool) {
	key, spec, hasSpec := strings.Cut(tag, ":")
	v, ok := l[key]
	if !ok {
		return "", false
	}
	decimals := 1
	if hasSpec {
		n, err := strconv.Atoi(spec)
		if err != nil || n < 0 {
			return "", false
		}
		decimals = n
	}
	return FormatNumber(v, decimals), true
}

// Markers is an immutable set of selected marker identifiers (CD34, MPO, ...).
// It remembers the order in which identifiers were first selected.
type Markers struct {
	set   map[string]struct{}
	order []string
}

// NewMarkers builds a marker set. Surrounding whitespace is trimmed, empty
// identifiers are ignored and repeats keep their first position.
func NewMarkers(ids ...string) Markers {
	m := Markers{set: make(map[string]struct{}, len(ids)), order: make([]string, 0, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := m.set[id]; dup {
			continue
		}
		m.set[id] = struct{}{}
		m.order = append(m.order, id)
	}
	return m
}

func (m Markers) Has(id string) bool {
	_, ok := m.set[id]
	return ok
}

// HasAll reports whether the selection is a superset of required.
func (m Markers) HasAll(required ...string) bool {
	for _, id := range required {
		if !m.Has(id) {
			return false
		}
	}
	return true
}

func (m Markers) Len() int {
	return len(m.set)
}

// IDs returns the selected identifiers in selection order.
func (m Markers) IDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Field supports the "markers" and "count" tags. Markers are listed in
// selection order.
func (m Markers) Field(tag string) (string, bool) {
	switch tag {
	case "markers":
		return strings.Join(m.order, ", "), true
	case "count":
		return strconv.Itoa(m.Len()), true
	}
	return "", false
}

// Render substitutes {tag} placeholders in template with values from obs.
// Tags the observation cannot resolve are left as written.
func Render(template string, obs Observation) string {
	if obs == nil || !strings.Contains(template, "{") {
		return template
	}
	return fasttemplate.ExecuteFuncString(template, "{", "}", func(w io.Writer, tag string) (int, error) {
		if v, ok := obs.Field(tag); ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, "{"+tag+"}")
	})
}

// FormatNumber renders v with a fixed number of decimals.
func FormatNumber(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
