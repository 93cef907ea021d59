// SPDX-License-Identifier: Apache-2.0

// Package report imports free-form lab reports (YAML or markdown) into
// observation sets the interpreter can evaluate.
package report

import "context"

// Reading is one name/value line extracted from a report.
type Reading struct {
	Name string
	// Raw is the value as written, e.g. "9.5 g/dL" or "positive". Empty for
	// bare marker lines such as "CD33+".
	Raw      string
	SourceID string
	Section  string
}

// Source describes the raw input to the import pipeline.
type Source struct {
	// Content is the raw document content.
	Content []byte
	Format  string
	ID      string
}

type Parser interface {
	CanHandle(source Source) bool
	Parse(ctx context.Context, source Source) ([]Reading, error)
	Name() string
}
