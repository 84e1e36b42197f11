// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package seed

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, "Azimuth World Seed", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"world", "start_room", "motd", "rooms", "objects", "players"} {
		assert.Contains(t, props, key)
	}
	assert.ElementsMatch(t, []any{"world", "start_room", "rooms", "players"}, doc["required"])
}

func TestValidateSchema_AcceptsDefault(t *testing.T) {
	assert.NoError(t, ValidateSchema(DefaultYAML()))
}

func TestValidateSchema_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: "  \n"},
		{name: "not yaml", yaml: "world: [unclosed"},
		{name: "missing rooms", yaml: "world: w\nstart_room: a\nplayers: [{name: wiz, password: x, level: wizard}]\n"},
		{name: "unknown field", yaml: minimalManifest + "colour: blue\n"},
		{name: "bad level", yaml: "world: w\nstart_room: a\nrooms: [{key: a, name: A}]\nplayers: [{name: wiz, password: x, level: god}]\n"},
		{name: "bad argspec", yaml: minimalManifest + "objects:\n  - key: rock\n    name: rock\n    verbs: [{name: kick, behavior: get, dobj: that}]\n"},
		{name: "short player name", yaml: "world: w\nstart_room: a\nrooms: [{key: a, name: A}]\nplayers: [{name: w, password: x, level: wizard}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, CodeInvalidManifest)
		})
	}
}

func TestCompiledSchemaIsReused(t *testing.T) {
	first, err := compiledSchema()
	require.NoError(t, err)
	second, err := compiledSchema()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFormatSchemaError(t *testing.T) {
	assert.Empty(t, FormatSchemaError(nil))
	assert.Equal(t, "plain", FormatSchemaError(errors.New("plain")))

	err := ValidateSchema([]byte(minimalManifest + "colour: blue\n"))
	require.Error(t, err)
	msg := FormatSchemaError(err)
	assert.NotContains(t, msg, "schema validation failed")
	assert.Contains(t, msg, "colour")
}

func TestToJSONTypes(t *testing.T) {
	in := map[string]any{
		"list":  []any{1, "two", map[string]any{"three": 3.5}},
		"flag":  true,
		"empty": nil,
	}
	assert.Equal(t, in, toJSONTypes(in))
}
