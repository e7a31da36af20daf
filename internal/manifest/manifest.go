// Package manifest parses declarative plugin manifests. A manifest is a
// CUE file declaring the plugins a bundle provides — name, namespace, and
// positional input/output type tags — validated against an embedded
// schema. Bind attaches Go entry points to the declarations, producing
// descriptors ready for registration.
//
// The manifest is the declarative half of registration; registering the
// bound descriptors stays imperative. A declared signature the
// implementation does not honor surfaces as a contract violation at call
// time, not at registration time.
package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tessera/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Decl is one declared plugin capability.
type Decl struct {
	Name      string
	Namespace string
	Inputs    []ir.Tag
	Outputs   []ir.Tag
	Doc       string
}

// Ref returns the qualified "namespace/name" form.
func (d Decl) Ref() string {
	return d.Namespace + "/" + d.Name
}

// Load reads and parses a manifest file.
func Load(path string) ([]Decl, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(path, string(src))
}

// Parse compiles manifest source, validates it against the embedded
// schema, and extracts the plugin declarations. filename is used for
// error positions only.
func Parse(filename, src string) ([]Decl, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("embedded schema is broken: %w", err)
	}

	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	return extractDecls(unified)
}

// extractDecls walks the validated plugins list.
func extractDecls(v cue.Value) ([]Decl, error) {
	pluginsVal := v.LookupPath(cue.ParsePath("plugins"))
	if !pluginsVal.Exists() {
		return nil, &CompileError{
			Field:   "plugins",
			Message: "plugins list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := pluginsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []Decl
	seen := make(map[string]bool)
	for iter.Next() {
		d, err := extractDecl(iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[d.Ref()] {
			return nil, &CompileError{
				Field:   "plugins",
				Message: fmt.Sprintf("duplicate declaration %q", d.Ref()),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[d.Ref()] = true
		decls = append(decls, d)
	}

	if len(decls) == 0 {
		return nil, &CompileError{
			Field:   "plugins",
			Message: "at least one plugin declaration is required",
			Pos:     pluginsVal.Pos(),
		}
	}
	return decls, nil
}

func extractDecl(v cue.Value) (Decl, error) {
	var d Decl

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return d, formatCUEError(err)
	}
	d.Name = name

	namespace, err := v.LookupPath(cue.ParsePath("namespace")).String()
	if err != nil {
		return d, formatCUEError(err)
	}
	d.Namespace = namespace

	d.Inputs, err = extractTags(v, "inputs")
	if err != nil {
		return d, err
	}
	d.Outputs, err = extractTags(v, "outputs")
	if err != nil {
		return d, err
	}

	docVal := v.LookupPath(cue.ParsePath("doc"))
	if docVal.Exists() {
		doc, err := docVal.String()
		if err != nil {
			return d, formatCUEError(err)
		}
		d.Doc = doc
	}

	return d, nil
}

func extractTags(v cue.Value, field string) ([]ir.Tag, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	tags := []ir.Tag{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		tags = append(tags, ir.Tag(s))
	}
	return tags, nil
}

// CompileError represents a manifest validation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
