package typewiz

import "testing"

func validManifestPayload() map[string]any {
	return map[string]any{
		"schemaVersion": float64(1),
		"generatedAt":   "2026-07-31T00:00:00Z",
		"projectRoot":   "/repo",
		"runs": []any{
			map[string]any{
				"tool": "pyright",
				"mode": "current",
				"summary": map[string]any{
					"total": float64(0),
				},
			},
		},
	}
}

func TestValidateManifestPayloadAcceptsValidShape(t *testing.T) {
	payload := validManifestPayload()
	_, err := ValidateManifestPayload(payload, ModeLoader)
	if err != nil {
		t.Fatalf("expected valid payload to pass, got %v", err)
	}
}

func TestValidateManifestPayloadDefaultsMissingSchemaVersion(t *testing.T) {
	payload := validManifestPayload()
	delete(payload, "schemaVersion")
	result, err := ValidateManifestPayload(payload, ModeLoader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["schemaVersion"] != float64(CurrentSchemaVersion) {
		t.Errorf("expected schemaVersion to default to current, got %v", result["schemaVersion"])
	}
}

func TestValidateManifestPayloadRejectsNonIntegerSchemaVersion(t *testing.T) {
	payload := validManifestPayload()
	payload["schemaVersion"] = "not-a-number"
	_, err := ValidateManifestPayload(payload, ModeLoader)
	if err == nil {
		t.Fatal("expected an error for a non-integer schemaVersion")
	}
}

func TestValidateManifestPayloadRejectsUnsupportedVersion(t *testing.T) {
	payload := validManifestPayload()
	payload["schemaVersion"] = float64(999)
	_, err := ValidateManifestPayload(payload, ModeLoader)
	if err == nil {
		t.Fatal("expected an error for an unsupported schemaVersion")
	}
}

func TestValidateManifestPayloadLoaderModeDiscardsMalformedRun(t *testing.T) {
	payload := validManifestPayload()
	payload["runs"] = append(payload["runs"].([]any), "not-an-object")
	result, err := ValidateManifestPayload(payload, ModeLoader)
	if err != nil {
		t.Fatalf("loader mode should discard rather than fail: %v", err)
	}
	if len(result["runs"].([]any)) != 1 {
		t.Errorf("expected malformed run discarded, got %v", result["runs"])
	}
}

func TestValidateManifestPayloadStrictModeRejectsMalformedRun(t *testing.T) {
	payload := validManifestPayload()
	payload["runs"] = append(payload["runs"].([]any), "not-an-object")
	_, err := ValidateManifestPayload(payload, ModeStrict)
	if err == nil {
		t.Fatal("expected strict mode to reject a malformed run element")
	}
}

func TestValidateManifestPayloadStrictModeRejectsExtraKeys(t *testing.T) {
	payload := validManifestPayload()
	payload["unexpectedKey"] = "value"
	_, err := ValidateManifestPayload(payload, ModeStrict)
	if err == nil {
		t.Fatal("expected strict mode to reject an unexpected top-level key")
	}
}

func TestValidateRatchetPayloadAcceptsValidShape(t *testing.T) {
	payload := map[string]any{
		"generatedAt": "2026-07-31T00:00:00Z",
		"runs": map[string]any{
			"pyright:current": map[string]any{
				"severities": []any{"error", "warning"},
				"paths":      map[string]any{},
				"targets":    map[string]any{},
			},
		},
	}
	if err := ValidateRatchetPayload(payload); err != nil {
		t.Fatalf("expected valid ratchet payload to pass, got %v", err)
	}
}
