// Package schema holds the JSON Schemas that model output must satisfy. The
// same text is rendered into prompts and compiled for validation.
package schema

import (
	"bytes"
	"embed"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Name identifies an embedded schema.
type Name string

const (
	Valuation Name = "valuation"
	LeadScore Name = "lead_score"
)

//go:embed schemas/*.json
var files embed.FS

var (
	compileOnce sync.Once
	compiled    map[Name]*jsonschema.Schema
	compileErr  error
)

func url(name Name) string {
	return "schemas/" + string(name) + ".json"
}

// Source returns the raw schema document for name.
func Source(name Name) (string, error) {
	b, err := files.ReadFile(url(name))
	if err != nil {
		return "", eris.Wrapf(err, "schema: read %s", name)
	}
	return string(b), nil
}

// MustSource is Source for the embedded names, which always exist.
func MustSource(name Name) string {
	s, err := Source(name)
	if err != nil {
		panic(err)
	}
	return s
}

func compileAll() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	names := []Name{Valuation, LeadScore}
	for _, n := range names {
		b, err := files.ReadFile(url(n))
		if err != nil {
			compileErr = eris.Wrapf(err, "schema: read %s", n)
			return
		}
		if err := compiler.AddResource(url(n), bytes.NewReader(b)); err != nil {
			compileErr = eris.Wrapf(err, "schema: add %s", n)
			return
		}
	}

	out := make(map[Name]*jsonschema.Schema, len(names))
	for _, n := range names {
		s, err := compiler.Compile(url(n))
		if err != nil {
			compileErr = eris.Wrapf(err, "schema: compile %s", n)
			return
		}
		out[n] = s
	}
	compiled = out
}

// Validate checks a decoded JSON document (the result of unmarshalling into
// any) against the named schema.
func Validate(name Name, doc any) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[name]
	if !ok {
		return eris.Errorf("schema: unknown schema %q", name)
	}
	if err := s.Validate(doc); err != nil {
		return eris.Wrapf(err, "schema: %s", name)
	}
	return nil
}
