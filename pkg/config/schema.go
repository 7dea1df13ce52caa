package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// configSchema constrains the per-field numeric ranges. The cross-field
// checks (non-empty clone_types, shingle_size <= minimum_tokens) live in
// Validate. b*r is not checked anywhere: lsh.ChooseBandsRows only returns
// divisor pairs of k, so b*r == k by construction.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "minimum_tokens": {"type": "integer", "minimum": 1},
    "minimum_similarity": {"type": "number", "minimum": 0, "maximum": 1},
    "shingle_size": {"type": "integer", "minimum": 1},
    "num_hashes": {"type": "integer", "minimum": 1},
    "max_concurrency": {"type": "integer", "minimum": 0},
    "min_nodes": {"type": "integer", "minimum": 1},
    "max_file_size": {"type": "integer", "minimum": 0},
    "alpha": {"type": "integer", "minimum": 1},
    "parallel_mode": {"enum": ["auto", "always", "sequential"]},
    "clone_types": {
      "type": "array",
      "items": {"enum": ["exact", "near", "semantic"]}
    }
  },
  "required": ["minimum_tokens", "minimum_similarity", "shingle_size", "num_hashes", "parallel_mode"]
}`

var compiledSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(configSchema)))
	if err != nil {
		panic(fmt.Errorf("config: invalid built-in schema: %w", err))
	}
	const resourceURL = "mem://clones-config-schema.json"
	if err := c.AddResource(resourceURL, doc); err != nil {
		panic(fmt.Errorf("config: adding built-in schema: %w", err))
	}
	compiledSchema, err = c.Compile(resourceURL)
	if err != nil {
		panic(fmt.Errorf("config: compiling built-in schema: %w", err))
	}
}

// ErrInvalidConfig wraps every configuration validation failure so callers
// can match on it with errors.Is/errors.As, per the InvalidConfig error
// kind in the detector's failure model.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks cfg against the JSON Schema and the cross-field
// invariants a schema cannot express (non-empty clone types, shingle_size
// not above minimum_tokens). It fails fast: callers
// must call this before any file is scanned.
func Validate(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshal for validation: %v", ErrInvalidConfig, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: unmarshal for validation: %v", ErrInvalidConfig, err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if len(cfg.CloneTypes) == 0 {
		return fmt.Errorf("%w: clone_types must name at least one type", ErrInvalidConfig)
	}
	if cfg.ShingleSize > cfg.MinimumTokens {
		return fmt.Errorf("%w: shingle_size (%d) must not exceed minimum_tokens (%d)", ErrInvalidConfig, cfg.ShingleSize, cfg.MinimumTokens)
	}
	return nil
}
