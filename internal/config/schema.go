package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaJSON is the JSON Schema for the per-user/per-project
// config.json file (§6 "Recognized keys"). It validates shape —
// types, enums, string formats — independently of the business-rule
// checks ConfigTree.Validate performs on the resolved struct.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": true,
  "properties": {
    "github_token": {"type": "string"},
    "slack_token": {"type": "string"},
    "slack_channel": {"type": "string", "minLength": 2, "maxLength": 22},
    "discord_webhook_url": {"type": "string", "format": "uri"},
    "default_branch": {"type": "string", "minLength": 1},
    "auto_push": {"type": "boolean"},
    "auto_pr": {"type": "boolean"},
    "confirm_destructive_actions": {"type": "boolean"},
    "node_env": {"enum": ["development", "production", "test"]},
    "debug": {"type": "boolean"},
    "log_level": {"enum": ["error", "warn", "info", "debug"]}
  }
}`

// SchemaIssue is one JSON Schema validation failure.
type SchemaIssue struct {
	Path    string
	Message string
}

// CheckConfigFile validates the raw JSON at path against the bundled
// config schema. A missing file is not an error — it returns no
// issues, since config.json is optional at every layer.
func CheckConfigFile(path string) ([]SchemaIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("parsing bundled schema: %w", err)
	}
	const resourceURL = "mem://team-flow/config.schema.json"
	if err := compiler.AddResource(resourceURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("registering schema: %w", err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return []SchemaIssue{{Message: fmt.Sprintf("%s is not valid JSON: %v", path, err)}}, nil
	}

	if err := schema.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			verr = ve
		}
		if verr == nil {
			return []SchemaIssue{{Message: err.Error()}}, nil
		}
		var issues []SchemaIssue
		collectSchemaIssues(verr, &issues)
		return issues, nil
	}

	return nil, nil
}

// collectSchemaIssues flattens a jsonschema.ValidationError tree into
// a flat list, depth-first.
func collectSchemaIssues(verr *jsonschema.ValidationError, out *[]SchemaIssue) {
	if len(verr.Causes) == 0 {
		*out = append(*out, SchemaIssue{
			Path:    verr.InstanceLocation,
			Message: verr.Error(),
		})
		return
	}
	for _, cause := range verr.Causes {
		collectSchemaIssues(cause, out)
	}
}
