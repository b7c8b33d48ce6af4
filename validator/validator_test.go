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

package validator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	}
}`

func TestGetOrCompileCachesCompiledSchema(t *testing.T) {
	t.Parallel()

	c := NewCache()
	s1, err := c.GetOrCompile("pet.schema.json", []byte(petSchema))
	require.NoError(t, err)
	s2, err := c.GetOrCompile("pet.schema.json", []byte(petSchema))
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompileCompilesEachPointerAtMostOnce(t *testing.T) {
	t.Parallel()

	c := NewCache()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompile("pet.schema.json", []byte(petSchema))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompileInvalidSchema(t *testing.T) {
	t.Parallel()

	c := NewCache()
	_, err := c.GetOrCompile("bad.schema.json", []byte("not json"))
	assert.Error(t, err)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	t.Parallel()

	c := NewCache()
	err := c.Validate(LevelStrict, "pet.schema.json", []byte(petSchema), map[string]any{"age": float64(3)})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Fields)
}

func TestValidateAcceptsConformingData(t *testing.T) {
	t.Parallel()

	c := NewCache()
	err := c.Validate(LevelStrict, "pet.schema.json", []byte(petSchema), map[string]any{"name": "Rex"})
	assert.NoError(t, err)
}

func TestValidateOffSkipsValidation(t *testing.T) {
	t.Parallel()

	c := NewCache()
	err := c.Validate(LevelOff, "pet.schema.json", []byte(petSchema), map[string]any{"age": float64(-1)})
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Len(), "off level must not even compile the schema")
}

func TestValidateIsDeterministic(t *testing.T) {
	t.Parallel()

	c := NewCache()
	data := map[string]any{"age": float64(-1)}

	err1 := c.Validate(LevelStrict, "pet.schema.json", []byte(petSchema), data)
	err2 := c.Validate(LevelStrict, "pet.schema.json", []byte(petSchema), data)

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.(*ValidationError).Fields, err2.(*ValidationError).Fields)
}
