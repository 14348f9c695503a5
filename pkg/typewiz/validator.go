package typewiz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var validatorLog = logger.New("typewiz:validator")

//go:embed schemas/manifest.schema.json
var manifestSchemaJSON string

//go:embed schemas/ratchet.schema.json
var ratchetSchemaJSON string

var (
	manifestSchemaOnce   sync.Once
	manifestSchemaCached *jsonschema.Schema
	manifestSchemaErr    error

	ratchetSchemaOnce   sync.Once
	ratchetSchemaCached *jsonschema.Schema
	ratchetSchemaErr    error
)

func compileEmbeddedSchema(schemaJSON, schemaURL string) (*jsonschema.Schema, error) {
	validatorLog.Printf("compiling embedded JSON schema %s", schemaURL)
	compiler := jsonschema.NewCompiler()

	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", schemaURL, err)
	}
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", schemaURL, err)
	}
	return compiler.Compile(schemaURL)
}

func getManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		manifestSchemaCached, manifestSchemaErr = compileEmbeddedSchema(manifestSchemaJSON, "https://ratchetr.dev/schemas/manifest.schema.json")
	})
	return manifestSchemaCached, manifestSchemaErr
}

func getRatchetSchema() (*jsonschema.Schema, error) {
	ratchetSchemaOnce.Do(func() {
		ratchetSchemaCached, ratchetSchemaErr = compileEmbeddedSchema(ratchetSchemaJSON, "https://ratchetr.dev/schemas/ratchet.schema.json")
	})
	return ratchetSchemaCached, ratchetSchemaErr
}

// ValidationMode selects how the validator reacts to non-fatal shape
// problems (spec §4.G "loader" vs "strict" mode).
type ValidationMode int

const (
	ModeLoader ValidationMode = iota
	ModeStrict
)

// ValidateManifestPayload runs structural + schema validation over a
// decoded manifest payload (spec §4.G). In ModeStrict, extra top-level keys
// and malformed run elements are rejected outright; in ModeLoader they are
// discarded and logged.
func ValidateManifestPayload(raw map[string]any, mode ValidationMode) (map[string]any, error) {
	sv, ok := raw["schemaVersion"]
	if !ok || sv == nil {
		raw["schemaVersion"] = float64(CurrentSchemaVersion)
	} else if _, isNumber := sv.(float64); !isNumber {
		return nil, errcat.New(errcat.KindManifestValidation, "validator", "schemaVersion must be an integer").
			WithContext("got", fmt.Sprintf("%T", sv))
	} else if int(sv.(float64)) != CurrentSchemaVersion {
		return nil, errcat.New(errcat.KindManifestValidation, "validator", "unsupported schemaVersion").
			WithContext("version", fmt.Sprintf("%v", sv))
	}

	for key := range raw {
		if manifestTopLevelKeys[key] {
			continue
		}
		if mode == ModeStrict {
			return nil, errcat.New(errcat.KindManifestValidation, "validator", "unexpected top-level key in strict mode").
				WithContext("key", key)
		}
		validatorLog.Printf("discarding unexpected top-level key %q in loader mode", key)
		delete(raw, key)
	}

	if runsRaw, ok := raw["runs"]; ok {
		runsList, isArray := runsRaw.([]any)
		if !isArray {
			return nil, errcat.New(errcat.KindManifestValidation, "validator", "runs must be an array")
		}
		cleaned := make([]any, 0, len(runsList))
		for i, r := range runsList {
			if _, isObject := r.(map[string]any); !isObject {
				if mode == ModeStrict {
					return nil, errcat.New(errcat.KindManifestValidation, "validator", "malformed run element").
						WithContext("index", fmt.Sprintf("%d", i))
				}
				validatorLog.Printf("discarding malformed run element at index %d in loader mode", i)
				continue
			}
			cleaned = append(cleaned, r)
		}
		raw["runs"] = cleaned
	}

	schema, err := getManifestSchema()
	if err != nil {
		validatorLog.Printf("no schema validator available, skipping schema validation: %v", err)
		return raw, nil
	}
	if err := schema.Validate(raw); err != nil {
		return nil, errcat.Wrap(errcat.KindManifestValidation, "validator", "schema validation failed", err)
	}

	return raw, nil
}

var manifestTopLevelKeys = map[string]bool{
	"schemaVersion":        true,
	"generatedAt":          true,
	"projectRoot":          true,
	"fingerprintTruncated": true,
	"toolVersions":         true,
	"runs":                 true,
}

// ValidateRatchetPayload runs schema validation over a decoded ratchet
// model payload (spec §4.H persistence shape).
func ValidateRatchetPayload(raw map[string]any) error {
	schema, err := getRatchetSchema()
	if err != nil {
		validatorLog.Printf("no schema validator available, skipping ratchet schema validation: %v", err)
		return nil
	}
	if err := schema.Validate(raw); err != nil {
		return errcat.Wrap(errcat.KindRatchetModelValidation, "validator", "ratchet schema validation failed", err)
	}
	return nil
}
