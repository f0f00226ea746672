package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

func newTestResolver(t *testing.T, src CatalogSource, arena *Arena) *Resolver {
	t.Helper()
	r, err := NewResolver(context.Background(), src, arena)
	require.NoError(t, err)
	return r
}

func TestHierarchyResolveExistingPath(t *testing.T) {
	rootID := uuid.New()
	childID := uuid.New()
	src := &memSource{
		categories: []models.Category{
			{ID: rootID, Name: "Pişirme", Slug: "pisirme", Level: 0},
			{ID: childID, ParentID: &rootID, Name: "Fırınlar", Slug: "firinlar", Level: 1},
		},
	}
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, src, arena), true, true, true)

	chain, rerr := b.Resolve("Pişirme / Fırınlar", 2)
	require.Nil(t, rerr)
	require.Len(t, chain, 2)
	assert.Equal(t, rootID, chain[0].ID)
	assert.Equal(t, childID, chain[1].ID)
	assert.Empty(t, arena.Items(), "existing nodes must not become candidates")
}

func TestHierarchyProposesMissingSegments(t *testing.T) {
	rootID := uuid.New()
	src := &memSource{
		categories: []models.Category{{ID: rootID, Name: "Pişirme", Slug: "pisirme", Level: 0}},
	}
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, src, arena), true, true, true)

	chain, rerr := b.Resolve("Pişirme / Fırınlar / Pizza", 3)
	require.Nil(t, rerr)
	require.Len(t, chain, 3)
	assert.False(t, chain[0].IsCandidate())
	assert.True(t, chain[1].IsCandidate())
	assert.True(t, chain[2].IsCandidate())

	items := arena.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "firinlar", items[0].Slug)
	assert.Equal(t, "pizza", items[1].Slug)
	require.NotNil(t, items[1].Parent)
	assert.Equal(t, chain[1], *items[1].Parent, "grandchild must point at the pending child")
}

func TestHierarchyCandidateDedupAcrossRows(t *testing.T) {
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, &memSource{}, arena), true, true, true)

	first, rerr := b.Resolve("Pişirme Üniteleri / Ocaklar", 2)
	require.Nil(t, rerr)
	second, rerr := b.Resolve("PİŞİRME ÜNİTELERİ / ocaklar", 3)
	require.Nil(t, rerr)

	assert.Equal(t, first, second, "canonically equal paths must share candidates")
	assert.Len(t, arena.Items(), 2)
}

func TestHierarchyStrictModeRejectsMissing(t *testing.T) {
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, &memSource{}, arena), true, true, false)

	_, rerr := b.Resolve("Pişirme", 2)
	require.NotNil(t, rerr)
	assert.Equal(t, "UNRESOLVED_CATEGORY", rerr.Code)
	assert.Empty(t, arena.Items())
}

func TestHierarchyCreateDisabledIsHardError(t *testing.T) {
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, &memSource{}, arena), true, false, true)

	_, rerr := b.Resolve("Pişirme", 2)
	require.NotNil(t, rerr)
	assert.Equal(t, "CATEGORY_NOT_FOUND", rerr.Code)
}

func TestHierarchySlashAsLiteralName(t *testing.T) {
	arena := &Arena{}
	b := NewHierarchyBuilder(newTestResolver(t, &memSource{}, arena), false, true, true)

	chain, rerr := b.Resolve("Hazırlık / Tezgahlar", 2)
	require.Nil(t, rerr)
	require.Len(t, chain, 1, "whole path is one category name when splitting is off")
	require.Len(t, arena.Items(), 1)
	assert.Equal(t, "Hazırlık / Tezgahlar", arena.Items()[0].Name)
}

func TestHierarchyDeterministicSlugAllocation(t *testing.T) {
	build := func() []string {
		arena := &Arena{}
		src := &memSource{
			categories: []models.Category{{ID: uuid.New(), Name: "Mevcut", Slug: "pizza", Level: 0}},
		}
		b := NewHierarchyBuilder(newTestResolver(t, src, arena), true, true, true)
		_, rerr := b.Resolve("Pizza", 2)
		require.Nil(t, rerr)
		_, rerr = b.Resolve("Fırınlar / Pizza", 3)
		require.Nil(t, rerr)
		var slugs []string
		for _, p := range arena.Items() {
			slugs = append(slugs, p.Slug)
		}
		return slugs
	}

	first := build()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, build(), "identical input must allocate identical slugs")
	}
}
