package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Criteria  []Criterion `yaml:"criteria"`
	Materials []Material  `yaml:"materials"`
}

// StaticProvider serves an immutable catalog held in memory.
type StaticProvider struct {
	materials []Material
	criteria  []Criterion
}

// NewStaticProvider builds a provider over the given catalog after validating it.
func NewStaticProvider(materials []Material, criteria []Criterion) (*StaticProvider, error) {
	if err := Validate(materials, criteria); err != nil {
		return nil, err
	}
	return &StaticProvider{materials: materials, criteria: criteria}, nil
}

// Default returns the built-in catalog.
func Default() (*StaticProvider, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file. An empty path yields the built-in catalog.
func Load(path string) (*StaticProvider, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*StaticProvider, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewStaticProvider(f.Materials, f.Criteria)
}

// Materials returns a copy of the material catalog.
func (p *StaticProvider) Materials(_ context.Context) ([]Material, error) {
	out := make([]Material, len(p.materials))
	copy(out, p.materials)
	return out, nil
}

// Criteria returns a copy of the criteria catalog.
func (p *StaticProvider) Criteria(_ context.Context) ([]Criterion, error) {
	out := make([]Criterion, len(p.criteria))
	copy(out, p.criteria)
	return out, nil
}
