package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when the loaded settings do not conform to
// the configuration schema.
var ErrSchemaViolation = errors.New("config does not match schema")

// configSchema constrains the shape of the loaded settings before they are
// unmarshalled, so a mistyped key or a wrongly-typed value fails with a
// pointed message instead of a zero value.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "type":          {"type": "string", "minLength": 1},
    "collation":     {"type": "string"},
    "window":        {"type": "integer", "minimum": 0},
    "format":        {"type": "string", "enum": ["table", "yaml"]},
    "running":       {"type": "boolean"},
    "verify":        {"type": "boolean"},
    "compress":      {"type": "boolean"},
    "snapshot_path": {"type": "string"},
    "chart_path":    {"type": "string"},
    "metrics_addr":  {"type": "string"}
  }
}`

// validateSchema checks the raw settings map against the config schema.
func validateSchema(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	settingsLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, settingsLoader)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(problems, "; "))
}
