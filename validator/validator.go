// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package validator implements the validator cache: each OpenAPI
// JSON-Schema is compiled once, keyed by its schema pointer, and
// reused for request/response validation. The cache is a read-mostly
// RWMutex map: compilation under a short-held write lock, lookups
// under read locks.
package validator

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Level controls whether a validation direction is enforced
// (configuration key `validation`: strict, warn, or off).
type Level string

// Recognized validation levels.
const (
	LevelStrict Level = "strict"
	LevelWarn   Level = "warn"
	LevelOff    Level = "off"
)

// FieldError is one structured validation failure.
type FieldError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Constraint string `json:"constraint"`
}

// ValidationError is a non-empty list of field errors. Validate sorts
// the fields by field path; the order of errors sharing one path is
// not defined.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validator: validation failed"
	}
	return fmt.Sprintf("validator: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

// Cache compiles each schema pointer at most once and serves subsequent
// lookups without recompiling. Reading an already-compiled
// *jsonschema.Schema takes only the read lock; compilation happens
// under a short-held write lock.
type Cache struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewCache returns an empty validator cache.
func NewCache() *Cache {
	return &Cache{schemas: make(map[string]*jsonschema.Schema)}
}

// GetOrCompile returns the compiled schema for pointer, compiling and
// caching it on first use. schemaJSON is the raw JSON Schema document;
// it is only consulted on a cache miss.
func (c *Cache) GetOrCompile(pointer string, schemaJSON []byte) (*jsonschema.Schema, error) {
	c.mu.RLock()
	schema, ok := c.schemas[pointer]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check: another goroutine may have compiled it while we waited
	// for the write lock.
	if schema, ok := c.schemas[pointer]; ok {
		return schema, nil
	}

	schema, err := compile(pointer, schemaJSON)
	if err != nil {
		return nil, err
	}
	c.schemas[pointer] = schema
	return schema, nil
}

// Len reports how many distinct schemas have been compiled so far.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

func compile(pointer string, schemaJSON []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	compiler.AssertContent()

	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("validator: invalid schema JSON for %q: %w", pointer, err)
	}

	url := pointer
	if url == "" {
		url = "schema.json"
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("validator: failed to add schema resource %q: %w", pointer, err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("validator: failed to compile schema %q: %w", pointer, err)
	}
	return schema, nil
}

// Validate runs data (already decoded into Go values: map[string]any,
// []any, or scalars) against the schema cached under pointer, returning
// a *ValidationError with every field violation collected and sorted by
// field path. A Level of LevelOff always returns nil without touching
// the cache.
func (c *Cache) Validate(level Level, pointer string, schemaJSON []byte, data any) error {
	if level == LevelOff {
		return nil
	}

	schema, err := c.GetOrCompile(pointer, schemaJSON)
	if err != nil {
		return &ValidationError{Fields: []FieldError{{
			Field: "", Message: err.Error(), Constraint: "schema_compile_error",
		}}}
	}

	if err := schema.Validate(data); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return &ValidationError{Fields: []FieldError{{Field: "", Message: err.Error(), Constraint: "schema_validation_error"}}}
		}
		return formatValidationError(verr)
	}
	return nil
}

func formatValidationError(verr *jsonschema.ValidationError) *ValidationError {
	result := &ValidationError{}
	collect(verr, result)
	sort.Slice(result.Fields, func(i, j int) bool { return result.Fields[i].Field < result.Fields[j].Field })
	return result
}

func collect(verr *jsonschema.ValidationError, result *ValidationError) {
	if verr == nil {
		return
	}

	field := ""
	for i, seg := range verr.InstanceLocation {
		if i > 0 {
			field += "."
		}
		field += seg
	}

	if len(verr.Causes) == 0 {
		result.Fields = append(result.Fields, FieldError{
			Field:      field,
			Message:    verr.Error(),
			Constraint: fmt.Sprintf("%v", verr.ErrorKind),
		})
		return
	}

	for _, cause := range verr.Causes {
		collect(cause, result)
	}
}
