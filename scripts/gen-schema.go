//go:build ignore

// Regenerates schemas/catalog-v0.json: go run scripts/gen-schema.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/stepflow/pkg/schema"
)

const out = "schemas/catalog-v0.json"

func main() {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote " + out)
}
