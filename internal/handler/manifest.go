package handler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"hostbot/internal/config"
)

const (
	KindCommand = "command"
	KindEvent   = "event"
)

// manifest is the on-disk descriptor of a single handler.
type manifest struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Options     []Option `json:"options"`
	Admin       bool     `json:"admin"`
	Event       string   `json:"event"`
	Once        bool     `json:"once"`
	Action      string   `json:"action"`
}

// Command names follow the Bot API rule for bot commands.
const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "action"],
  "properties": {
    "kind": {"enum": ["command", "event"]},
    "name": {"type": "string", "pattern": "^[a-z0-9_]{1,32}$"},
    "description": {"type": "string", "maxLength": 256},
    "options": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "required": {"type": "boolean"}
        }
      }
    },
    "admin": {"type": "boolean"},
    "event": {"type": "string", "minLength": 1},
    "once": {"type": "boolean"},
    "action": {"type": "string", "minLength": 1}
  },
  "allOf": [
    {"if": {"properties": {"kind": {"const": "command"}}}, "then": {"required": ["name"]}},
    {"if": {"properties": {"kind": {"const": "event"}}}, "then": {"required": ["event"]}}
  ]
}`

var manifestSchema = mustCompileSchema(manifestSchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(src)))
	if err != nil {
		panic(fmt.Sprintf("manifest schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", doc); err != nil {
		panic(fmt.Sprintf("manifest schema: %v", err))
	}
	s, err := c.Compile("manifest.json")
	if err != nil {
		panic(fmt.Sprintf("manifest schema: %v", err))
	}
	return s
}

// readManifest decodes and validates the manifest at path. yaml and toml
// documents are normalised through JSON so the validator sees json.Number values.
func readManifest(path string) (manifest, error) {
	var m manifest
	var raw map[string]any
	if err := config.DecodeFile(path, &raw); err != nil {
		return m, manifestError{path: path, reason: "parse: " + err.Error()}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return m, manifestError{path: path, reason: "normalise: " + err.Error()}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return m, manifestError{path: path, reason: "normalise: " + err.Error()}
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return m, manifestError{path: path, reason: "schema: " + err.Error()}
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, manifestError{path: path, reason: "decode: " + err.Error()}
	}
	return m, nil
}
