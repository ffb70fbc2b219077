package mockapi

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

const descriptionSchemaURL = "https://acttest.dev/schemas/mockapi.json"

// descriptionSchemaJSON describes an API document: a map of API name to its
// base URL and endpoints grouped by scope.
const descriptionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://acttest.dev/schemas/mockapi.json",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["baseUrl", "endpoints"],
    "properties": {
      "baseUrl": { "type": "string" },
      "endpoints": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/endpoint" }
        }
      }
    }
  },
  "$defs": {
    "endpoint": {
      "type": "object",
      "required": ["method", "parameters", "path"],
      "properties": {
        "path": { "type": "string" },
        "method": {
          "type": "string",
          "enum": ["delete", "get", "patch", "post", "put"]
        },
        "parameters": {
          "type": "object",
          "required": ["body", "path", "query"],
          "properties": {
            "path": { "type": "array", "items": { "type": "string" } },
            "query": { "type": "array", "items": { "type": "string" } },
            "body": { "type": "array", "items": { "type": "string" } }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(descriptionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal description schema: %w", err)
	}
	if err := c.AddResource(descriptionSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add description schema resource: %w", err)
	}
	return c.Compile(descriptionSchemaURL)
})

// validateDescription checks raw JSON against the API description schema.
func validateDescription(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return acterrors.NewValidationError(fmt.Sprintf("mock api description is not valid JSON: %v", err), "")
	}
	if err := schema.Validate(doc); err != nil {
		msg := err.Error()
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			if v := collectViolations(verr); len(v) > 0 {
				msg = strings.Join(v, "; ")
			}
		}
		return acterrors.NewValidationError(
			"invalid mock api description: "+msg,
			"Each API needs a baseUrl and endpoints of {path, method, parameters{path, query, body}}",
		)
	}
	return nil
}

// collectViolations flattens a ValidationError tree into its leaf messages.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
