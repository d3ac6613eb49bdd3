package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateName names the built-in template.
const DefaultTemplateName = "default"

//go:embed default.yaml
var defaultCatalog []byte

// LoadFile reads and structurally decodes a catalog YAML file.
// Unknown fields are a structural error.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a catalog from a reader.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &c, nil
}

// Default returns the built-in catalog holding the default template.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Merge returns a catalog with the templates of base followed by those of
// extra. Templates in extra replace same-named templates of base.
func Merge(base, extra *Catalog) *Catalog {
	out := &Catalog{APIVersion: APIVersion}
	index := make(map[string]int)
	for _, c := range []*Catalog{base, extra} {
		if c == nil {
			continue
		}
		for _, t := range c.Templates {
			if i, ok := index[t.Name]; ok {
				out.Templates[i] = t
				continue
			}
			index[t.Name] = len(out.Templates)
			out.Templates = append(out.Templates, t)
		}
	}
	return out
}
