package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CostKey is the synthetic criterion whose values come from the caller's cost map
// rather than from a material's static attributes.
const CostKey = "cout"

var (
	ErrUnknownMaterial  = errors.New("catalog: unknown material")
	ErrInvalidCatalog   = errors.New("catalog: invalid catalog")
	ErrDuplicateEntry   = errors.New("catalog: duplicate entry")
	ErrMissingAttribute = errors.New("catalog: missing attribute")
)

// Material is a pipe material with its static attribute scores.
type Material struct {
	Name            string             `json:"name" yaml:"name"`
	NetworkTypes    []string           `json:"network_types" yaml:"network_types"`
	PressureRatings []string           `json:"pressure_ratings" yaml:"pressure_ratings"`
	Attributes      map[string]float64 `json:"attributes" yaml:"attributes"`
}

// Criterion describes one decision criterion and its polarity.
type Criterion struct {
	Key       string `json:"key" yaml:"key"`
	Label     string `json:"label" yaml:"label"`
	IsBenefit bool   `json:"is_benefit" yaml:"is_benefit"`
}

// Provider supplies the read-only material and criteria catalogs.
type Provider interface {
	Materials(ctx context.Context) ([]Material, error)
	Criteria(ctx context.Context) ([]Criterion, error)
}

// Filter returns the materials usable on the given network type and pressure rating.
// An empty filter value matches every material.
func Filter(materials []Material, networkType, pressure string) []Material {
	out := make([]Material, 0, len(materials))
	for _, m := range materials {
		if networkType != "" && !containsFold(m.NetworkTypes, networkType) {
			continue
		}
		if pressure != "" && !containsFold(m.PressureRatings, pressure) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Select picks the named materials in the order the names are given.
func Select(materials []Material, names []string) ([]Material, error) {
	byName := make(map[string]Material, len(materials))
	for _, m := range materials {
		byName[m.Name] = m
	}
	out := make([]Material, 0, len(names))
	for _, n := range names {
		m, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMaterial, n)
		}
		out = append(out, m)
	}
	return out, nil
}

// Find returns the material with the given name.
func Find(materials []Material, name string) (Material, bool) {
	for _, m := range materials {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Material{}, false
}

// Index maps criterion keys to their definitions.
func Index(criteria []Criterion) map[string]Criterion {
	idx := make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		idx[c.Key] = c
	}
	return idx
}

// Validate checks that names and keys are unique, that the cost criterion exists
// as a cost-type criterion, and that every other criterion is a numeric attribute
// of every material.
func Validate(materials []Material, criteria []Criterion) error {
	seenKeys := make(map[string]bool, len(criteria))
	hasCost := false
	for _, c := range criteria {
		if c.Key == "" {
			return fmt.Errorf("%w: criterion with empty key", ErrInvalidCatalog)
		}
		if seenKeys[c.Key] {
			return fmt.Errorf("%w: criterion %s", ErrDuplicateEntry, c.Key)
		}
		seenKeys[c.Key] = true
		if c.Key == CostKey {
			if c.IsBenefit {
				return fmt.Errorf("%w: %s must be a cost-type criterion", ErrInvalidCatalog, CostKey)
			}
			hasCost = true
		}
	}
	if !hasCost {
		return fmt.Errorf("%w: no %s criterion", ErrInvalidCatalog, CostKey)
	}

	seenNames := make(map[string]bool, len(materials))
	for _, m := range materials {
		if m.Name == "" {
			return fmt.Errorf("%w: material with empty name", ErrInvalidCatalog)
		}
		if seenNames[m.Name] {
			return fmt.Errorf("%w: material %s", ErrDuplicateEntry, m.Name)
		}
		seenNames[m.Name] = true
		for _, c := range criteria {
			if c.Key == CostKey {
				continue
			}
			if _, ok := m.Attributes[c.Key]; !ok {
				return fmt.Errorf("%w: %s has no %s", ErrMissingAttribute, m.Name, c.Key)
			}
		}
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
