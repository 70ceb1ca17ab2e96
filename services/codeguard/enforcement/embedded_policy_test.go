package enforcement

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEmbeddedDataIntegrity(t *testing.T) {
	// 1. Ensure the embedded slice is not empty
	if len(ForbiddenPatterns) == 0 {
		t.Fatal("Embedded denylist is empty. Did the build fail to include 'forbidden_patterns.yaml'?")
	}

	// 2. Ensure it is valid YAML (The 'Verify' step)
	var dump map[string]interface{}
	if err := yaml.Unmarshal(ForbiddenPatterns, &dump); err != nil {
		t.Fatalf("Embedded data is not valid YAML: %v", err)
	}

	if _, ok := dump["classifications"]; !ok {
		t.Fatal("Embedded denylist is missing the 'classifications' root key")
	}
}
