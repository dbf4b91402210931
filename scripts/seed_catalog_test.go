package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

type brokenProvider struct {
	materialsErr error
	criteriaErr  error
}

func (b brokenProvider) Materials(context.Context) ([]catalog.Material, error) {
	return []catalog.Material{{Name: "PVC"}}, b.materialsErr
}

func (b brokenProvider) Criteria(context.Context) ([]catalog.Criterion, error) {
	return []catalog.Criterion{{Key: catalog.CostKey}}, b.criteriaErr
}

func TestReadCatalog(t *testing.T) {
	ctx := context.Background()

	def, err := catalog.Default()
	require.NoError(t, err)
	materials, criteria, err := readCatalog(ctx, def)
	require.NoError(t, err)
	assert.NotEmpty(t, materials)
	assert.NotEmpty(t, criteria)

	_, _, err = readCatalog(ctx, brokenProvider{materialsErr: errors.New("disk")})
	assert.ErrorContains(t, err, "read materials")

	_, _, err = readCatalog(ctx, brokenProvider{criteriaErr: errors.New("disk")})
	assert.ErrorContains(t, err, "read criteria")
}
