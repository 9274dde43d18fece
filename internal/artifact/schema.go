package artifact

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/golfkpi/internal/kernel"
)

//go:embed schema.cue
var schemaCUE string

// Definition paths inside schema.cue.
const (
	defTemplate       = "#Template"
	defCourseSnapshot = "#CourseSnapshot"
)

// schemaSet holds the compiled schema. A cue.Context is not safe for
// concurrent unification, so every use goes through mu.
type schemaSet struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

var (
	schemaOnce sync.Once
	schemas    *schemaSet
	schemaErr  error
)

func loadSchemas() (*schemaSet, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile artifact schema: %w", err)
			return
		}
		schemas = &schemaSet{ctx: ctx, root: root}
	})
	return schemas, schemaErr
}

// validateSchema unifies canonical JSON with the named definition and
// requires the result to be concrete. Missing required fields, unknown
// fields (definitions are closed) and type or range violations all surface
// as a ValidationError naming the first offending field.
func validateSchema(entity, def string, canonical []byte) error {
	s, err := loadSchemas()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ctx.CompileBytes(canonical, cue.Filename(entity+".json"))
	if err := doc.Err(); err != nil {
		return &kernel.ValidationError{Entity: entity, Message: "document is not valid JSON", Err: err}
	}

	unified := s.root.LookupPath(cue.ParsePath(def)).Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return schemaError(entity, err)
	}
	return nil
}

// schemaError converts a CUE error list into a ValidationError for its first
// entry; the full CUE message is kept as the cause.
func schemaError(entity string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &kernel.ValidationError{Entity: entity, Message: "schema violation", Err: err}
	}
	first := errs[0]
	format, args := first.Msg()
	return &kernel.ValidationError{
		Entity:  entity,
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
