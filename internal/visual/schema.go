package visual

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// detectionSchema is the JSON contract remote detectors must honour
var detectionSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{"labels"},
	"properties": map[string]any{
		"labels": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "confidence"},
				"properties": map[string]any{
					"name":       map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"box": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x":      map[string]any{"type": "number"},
							"y":      map[string]any{"type": "number"},
							"width":  map[string]any{"type": "number"},
							"height": map[string]any{"type": "number"},
						},
					},
				},
			},
		},
		"raw_context_text": map[string]any{"type": "string"},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileDetectionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(detectionSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("detection.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("detection.json")
	})
	return compiledSchema, schemaErr
}

// decodeDetection validates a JSON payload against the detection contract
// and decodes it. Markdown code fences around the JSON are tolerated.
func decodeDetection(data []byte) (*Detection, error) {
	data = []byte(stripFences(string(data)))

	schema, err := compileDetectionSchema()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal detection: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("detection does not match schema: %w", err)
	}

	var det Detection
	if err := json.Unmarshal(data, &det); err != nil {
		return nil, fmt.Errorf("decode detection: %w", err)
	}
	return &det, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
