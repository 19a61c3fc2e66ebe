// Package tools declares the mobility tool surface: each tool's name,
// description, and argument schema. The catalog backs argument validation
// at execution time and the schema-compliance metric.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	// Schema is the JSON schema for the tool's argument mapping.
	Schema map[string]any
}

// Catalog holds tool definitions with their schemas pre-compiled.
type Catalog struct {
	defs     map[string]Definition
	compiled map[string]*jsonschema.Schema
}

// NewCatalog compiles the given definitions into a catalog.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs:     make(map[string]Definition, len(defs)),
		compiled: make(map[string]*jsonschema.Schema, len(defs)),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("tools: definition with empty name")
		}
		if _, dup := c.defs[def.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate definition %q", def.Name)
		}

		schema, err := compileSchema(def.Name, def.Schema)
		if err != nil {
			return nil, fmt.Errorf("tools: compiling schema for %s: %w", def.Name, err)
		}

		c.defs[def.Name] = def
		c.compiled[def.Name] = schema
	}

	return c, nil
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("serializing schema: %w", err)
	}

	schemaValue, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, schemaValue); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}

	return compiler.Compile(resource)
}

// Has reports whether the catalog declares the tool.
func (c *Catalog) Has(name string) bool {
	_, ok := c.defs[name]
	return ok
}

// Names returns all declared tool names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition looks up a tool definition.
func (c *Catalog) Definition(name string) (Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Validate checks an argument mapping against the tool's declared schema.
// It returns a *SchemaViolationError when the arguments do not conform,
// and an InvocationError when the tool is not declared at all.
func (c *Catalog) Validate(name string, args map[string]any) error {
	schema, ok := c.compiled[name]
	if !ok {
		return &InvocationError{Tool: name, Reason: "unknown tool"}
	}

	// Round-trip through JSON so Go-native values (ints, typed slices)
	// validate the same as decoded wire payloads.
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return &SchemaViolationError{Tool: name, Violations: []string{fmt.Sprintf("arguments not serializable: %v", err)}}
	}
	argsValue, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return &SchemaViolationError{Tool: name, Violations: []string{fmt.Sprintf("arguments not parseable: %v", err)}}
	}

	if err := schema.Validate(argsValue); err != nil {
		return &SchemaViolationError{Tool: name, Violations: []string{err.Error()}}
	}
	return nil
}
