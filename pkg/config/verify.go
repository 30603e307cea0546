package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema []byte

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema.
// Required fields, enums and numeric bounds are checked.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(embeddedSchema, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := verifyNode(&schema, schema.Definitions, configMap, ""); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// verifyNode checks value against schema node, recursing into object properties
func verifyNode(node *jsonschema.Schema, defs jsonschema.Definitions, value any, path string) error {
	node = resolveRef(node, defs)

	if node.Type == "object" {
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", nodePath(path))
		}
		for _, name := range node.Required {
			if v, ok := obj[name]; !ok || v == nil || v == "" {
				return fmt.Errorf("%s is required", joinPath(path, name))
			}
		}
		if node.Properties == nil {
			return nil
		}
		for pair := node.Properties.Oldest(); pair != nil; pair = pair.Next() {
			v, ok := obj[pair.Key]
			if !ok {
				continue
			}
			if err := verifyNode(pair.Value, defs, v, joinPath(path, pair.Key)); err != nil {
				return err
			}
		}
		return nil
	}

	if len(node.Enum) > 0 && !slices.Contains(node.Enum, value) {
		return fmt.Errorf("%s must be one of %v, got %v", nodePath(path), node.Enum, value)
	}

	num, ok := value.(float64)
	if !ok {
		return nil
	}
	if minVal, err := node.Minimum.Float64(); err == nil && num < minVal {
		return fmt.Errorf("%s must be at least %v, got %v", nodePath(path), minVal, num)
	}
	if maxVal, err := node.Maximum.Float64(); err == nil && num > maxVal {
		return fmt.Errorf("%s must be at most %v, got %v", nodePath(path), maxVal, num)
	}
	return nil
}

func resolveRef(node *jsonschema.Schema, defs jsonschema.Definitions) *jsonschema.Schema {
	if node.Ref == "" {
		return node
	}
	if def, ok := defs[strings.TrimPrefix(node.Ref, "#/$defs/")]; ok {
		return def
	}
	return node
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func nodePath(path string) string {
	if path == "" {
		return "config"
	}
	return path
}

// GenerateSchema generates a JSON schema for the Config struct.
// Only fields tagged with jsonschema "required" are required.
func GenerateSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true}
	return r.Reflect(&Config{})
}
