// Package snapshotfile reads and writes snapshot documents: a JSON object
// with tasks, dependencies and assignees. Input is validated against an
// embedded JSON schema before it is decoded.
package snapshotfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://taskgraph.local/schemas/snapshot.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
	})
	return compiled, compileErr
}

// FieldError is one schema violation.
type FieldError struct {
	Path    string // dotted path, e.g. "tasks.2.estimated_hours"
	Message string
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// SchemaError reports a document that does not match the snapshot schema.
type SchemaError struct {
	Fields []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid snapshot: " + strings.Join(parts, "; ")
}

// Parse validates data against the snapshot schema and decodes it.
func Parse(data []byte) (*model.Snapshot, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		se := &SchemaError{}
		collect(se, ve)
		return nil, se
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Read parses a snapshot from r.
func Read(r io.Reader) (*model.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

// Load parses the snapshot file at path. "-" reads standard input.
func Load(path string) (*model.Snapshot, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// Write encodes snap as indented JSON. Nil lists are written as empty
// arrays so the output always passes Parse.
func Write(w io.Writer, snap *model.Snapshot) error {
	out := *snap
	if out.Tasks == nil {
		out.Tasks = []*model.Task{}
	}
	if out.Dependencies == nil {
		out.Dependencies = []*model.Dependency{}
	}
	if out.Assignees == nil {
		out.Assignees = []*model.Assignee{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

func collect(se *SchemaError, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		se.Fields = append(se.Fields, FieldError{Path: pointerToPath(ve.InstanceLocation), Message: ve.Message})
		return
	}
	for _, cause := range ve.Causes {
		collect(se, cause)
	}
}

func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	return strings.ReplaceAll(ptr, "/", ".")
}
