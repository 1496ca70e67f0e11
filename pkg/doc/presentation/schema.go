/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// nolint:gochecknoglobals
var (
	definitionV1SchemaLoader = gojsonschema.NewStringLoader(definitionV1Schema)
	definitionV2SchemaLoader = gojsonschema.NewStringLoader(definitionV2Schema)
)

const definitionV1Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["requestGroups"],
  "properties": {
    "requestGroups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "requestedCredentials"],
        "properties": {
          "id": {"type": "string"},
          "requestedCredentials": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "fields"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "fields": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["id"],
                    "properties": {
                      "id": {"type": "string", "minLength": 1},
                      "required": {"type": "boolean"},
                      "keyMap": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                  }
                },
                "applicableCredentials": {"type": ["array", "null"], "items": {"type": "string"}},
                "inapplicableCredentials": {"type": ["array", "null"], "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

const definitionV2Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["credentialQueries", "credentialSets"],
  "definitions": {
    "claim": {
      "type": "object",
      "required": ["path"],
      "properties": {
        "path": {"type": "string", "minLength": 1},
        "required": {"type": "boolean"},
        "claims": {"type": ["array", "null"], "items": {"$ref": "#/definitions/claim"}}
      }
    }
  },
  "properties": {
    "credentialQueries": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "multiple": {"type": "boolean"},
          "applicableCredentials": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "state": {"type": "string"},
                "claims": {"type": ["array", "null"], "items": {"$ref": "#/definitions/claim"}}
              }
            }
          },
          "failureHint": {"type": ["object", "null"]}
        }
      }
    },
    "credentialSets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["options"],
        "properties": {
          "required": {"type": "boolean"},
          "options": {
            "type": "array",
            "items": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    }
  }
}`

// ParseDefinitionV1 validates raw JSON against the v1 request schema and unmarshals it.
func ParseDefinitionV1(data []byte) (*DefinitionV1, error) {
	if err := validate(definitionV1SchemaLoader, data, "v1 presentation definition"); err != nil {
		return nil, err
	}

	def := &DefinitionV1{}

	if err := json.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("unmarshal v1 presentation definition: %w", err)
	}

	return def, nil
}

// ParseDefinitionV2 validates raw JSON against the v2 request schema and unmarshals it.
func ParseDefinitionV2(data []byte) (*DefinitionV2, error) {
	if err := validate(definitionV2SchemaLoader, data, "v2 presentation definition"); err != nil {
		return nil, err
	}

	def := &DefinitionV2{}

	if err := json.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("unmarshal v2 presentation definition: %w", err)
	}

	return def, nil
}

func validate(schema gojsonschema.JSONLoader, data []byte, what string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate %s: %w", what, err)
	}

	if result.Valid() {
		return nil
	}

	resultErrors := result.Errors()

	errs := make([]string, len(resultErrors))
	for i := range resultErrors {
		errs[i] = resultErrors[i].String()
	}

	return errors.New(what + " is not valid: " + strings.Join(errs, ","))
}
