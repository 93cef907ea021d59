// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/hemebench/hemebench-mcp/internal/interpret"
)

//go:embed schema.cue
var schemaSource []byte

// Validate checks a YAML catalog document against the #Catalog schema
// without compiling it.
func Validate(data []byte) error {
	cctx := cuecontext.New()

	schema := cctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	file, err := cueyaml.Extract("catalog.yaml", data)
	if err != nil {
		return fmt.Errorf("%w: failed to read catalog: %w", interpret.ErrConfiguration, err)
	}
	doc := cctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("%w: failed to build catalog: %w", interpret.ErrConfiguration, err)
	}

	def := schema.LookupPath(cue.ParsePath("#Catalog"))
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: catalog does not match schema: %s", interpret.ErrConfiguration, cueerrors.Details(err, nil))
	}
	return nil
}
