// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package seed

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the manifest schema.
const SchemaID = "https://azimuth-mud.github.io/schemas/seed.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// GenerateSchema returns the JSON Schema for seed manifests.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Azimuth World Seed"
	schema.Description = "Schema for world seed manifests"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code(CodeInvalidManifest).Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema checks YAML manifest data against the schema.
func ValidateSchema(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return invalid("manifest is empty")
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeInvalidManifest).Wrapf(err, "invalid YAML")
	}
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code(CodeInvalidManifest).Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			schemaErr = oops.Code(CodeInvalidManifest).Wrapf(err, "parse schema")
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("seed.schema.json", doc); err != nil {
			schemaErr = oops.Code(CodeInvalidManifest).Wrapf(err, "add schema resource")
			return
		}
		schemaCompiled, schemaErr = c.Compile("seed.schema.json")
		if schemaErr != nil {
			schemaErr = oops.Code(CodeInvalidManifest).Wrapf(schemaErr, "compile schema")
		}
	})
	return schemaCompiled, schemaErr
}

// toJSONTypes rewrites a YAML tree into the types a JSON decoder produces.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case string, bool, int, int64, float64, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

// FormatSchemaError strips the wrapping from a validation error for display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, "schema validation failed: "); i >= 0 {
		msg = msg[i+len("schema validation failed: "):]
	}
	return msg
}
