package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/models"
)

func TestBuiltInDescriptors(t *testing.T) {
	r, err := NewRegistry("", nil)
	require.NoError(t, err)

	acc := r.Get(models.FieldAccession)
	require.NotNil(t, acc)
	assert.True(t, acc.ToLowerCase)
	assert.Equal(t, models.FieldTypeString, acc.FieldType)

	content := r.Get(models.FieldContent)
	require.NotNil(t, content)
	assert.True(t, content.Expanded)

	access := r.Get(models.FieldAccess)
	require.NotNil(t, access)
	assert.True(t, access.IsPrivate)

	assert.Nil(t, r.Get("nonexistent"))
}

func TestDefaultQueryFields(t *testing.T) {
	r, err := NewRegistry("", nil)
	require.NoError(t, err)

	fields := r.DefaultQueryFields(PublicCollection)
	assert.Contains(t, fields, models.FieldContent)
	assert.Contains(t, fields, models.FieldTitle)
	assert.NotContains(t, fields, models.FieldAccess)
	assert.NotContains(t, fields, models.FieldAccession)
}

func TestExpandedFields(t *testing.T) {
	r, err := NewRegistry("", nil)
	require.NoError(t, err)

	expanded := r.ExpandedFields()
	assert.True(t, expanded[models.FieldContent])
	assert.True(t, expanded[models.FieldTitle])
	assert.False(t, expanded[models.FieldAccession])
}

func TestFacetDescriptors(t *testing.T) {
	r, err := NewRegistry("", nil)
	require.NoError(t, err)

	var names []string
	for _, d := range r.FacetDescriptors(PublicCollection) {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, models.FieldCollection)
	assert.Contains(t, names, models.FieldType)
	assert.Contains(t, names, models.FieldReleaseYear)
}

func TestUnknownCollectionFallsBackToPublic(t *testing.T) {
	r, err := NewRegistry("", nil)
	require.NoError(t, err)

	assert.Equal(t, r.Collection(PublicCollection), r.Collection("nope"))
}

const overlayTOML = `name = "arrayexpress"
parent = "public"

[[fields]]
name = "organism"
title = "Organism"
field_type = "facet"
facet_type = "string"
multi_valued = true
to_lower_case = true
retrieved = true
`

func TestLoadCollectionOverlay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arrayexpress.toml"), []byte(overlayTOML), 0644))

	r, err := NewRegistry(dir, nil)
	require.NoError(t, err)

	organism := r.Get("organism")
	require.NotNil(t, organism)
	assert.Equal(t, models.FieldTypeFacet, organism.FieldType)

	assert.True(t, r.HasChildren(PublicCollection))
	assert.Equal(t, []string{"arrayexpress"}, r.Children(PublicCollection))
	assert.Equal(t, PublicCollection, r.Parent("arrayexpress"))
}

func TestMissingSchemaDirIsNotAnError(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	assert.NotNil(t, r.Get(models.FieldAccession))
}
