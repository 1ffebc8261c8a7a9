package main

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "text": {"type": ["string", "null"], "maxLength": 2000},
    "name": {"type": ["string", "null"], "maxLength": 100},
    "flag": {"type": ["boolean", "null"]}
  },
  "properties": {
    "basicInfo": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "name": {"$ref": "#/definitions/name"},
        "age": {"type": ["integer", "null"], "minimum": 0, "maximum": 130},
        "gender": {"enum": ["m", "f", null]}
      }
    },
    "location": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "city": {"$ref": "#/definitions/text"},
        "state": {"$ref": "#/definitions/text"},
        "country": {"$ref": "#/definitions/text"}
      }
    },
    "education": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {"level": {"$ref": "#/definitions/text"}}
    },
    "professional": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "occupation": {"$ref": "#/definitions/text"},
        "currentJob": {"$ref": "#/definitions/text"}
      }
    },
    "religiousInfo": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {"religiousLevel": {"$ref": "#/definitions/text"}}
    },
    "preferences": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "marriageType": {"$ref": "#/definitions/text"},
        "children": {"$ref": "#/definitions/text"}
      }
    },
    "personalInfo": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "about": {"$ref": "#/definitions/text"},
        "marriageGoals": {"$ref": "#/definitions/text"},
        "hasBeard": {"$ref": "#/definitions/flag"},
        "wearHijab": {"$ref": "#/definitions/flag"}
      }
    },
    "financialInfo": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {"situation": {"$ref": "#/definitions/text"}}
    },
    "guardianInfo": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "name": {"$ref": "#/definitions/name"},
        "phone": {"type": ["string", "null"], "maxLength": 32}
      }
    }
  }
}`

// profileValidator checks the shape of a profile document before it is
// decoded. Null sections and fields are accepted and read as absent.
// Content rules (moderation, completeness) run afterwards.
type profileValidator struct {
	schema *gojsonschema.Schema
}

func newProfileValidator() (*profileValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(profileSchema))
	if err != nil {
		return nil, fmt.Errorf("compile profile schema: %w", err)
	}
	return &profileValidator{schema: schema}, nil
}

// Validate returns one message per violation, or nil when doc is valid.
func (v *profileValidator) Validate(doc []byte) ([]string, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}
