package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"catalog-service/internal/models"
)

// CatalogSource supplies the existing catalog state the resolver indexes.
// Implemented by repository.CatalogRepository; tests supply sqlite-backed or
// in-memory implementations.
type CatalogSource interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListSeries(ctx context.Context) ([]models.Series, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListVariants(ctx context.Context) ([]models.Variant, error)
}

// Resolver answers "does this already exist" against a canonical index
// built once per job, and allocates deterministic slugs for candidates. It
// is job-local and read-only after construction apart from candidate
// registration; it is never shared across jobs.
type Resolver struct {
	arena *Arena

	brandsByForm map[string]uuid.UUID
	catsByScope  map[string]map[string]uuid.UUID
	catByID      map[uuid.UUID]*models.Category
	seriesByForm map[string]uuid.UUID
	seriesByID   map[uuid.UUID]*models.Series
	prodBySlug   map[string]*models.Product
	varByCode    map[string]*models.Variant

	slugsTaken    map[string]bool
	candidateKeys map[string]int
}

// NewResolver builds the canonical indexes for every entity type in one
// pass over existing state, so per-row lookups are O(1) instead of a linear
// scan of the catalog.
func NewResolver(ctx context.Context, src CatalogSource, arena *Arena) (*Resolver, error) {
	r := &Resolver{
		arena:         arena,
		brandsByForm:  make(map[string]uuid.UUID),
		catsByScope:   make(map[string]map[string]uuid.UUID),
		catByID:       make(map[uuid.UUID]*models.Category),
		seriesByForm:  make(map[string]uuid.UUID),
		seriesByID:    make(map[uuid.UUID]*models.Series),
		prodBySlug:    make(map[string]*models.Product),
		varByCode:     make(map[string]*models.Variant),
		slugsTaken:    make(map[string]bool),
		candidateKeys: make(map[string]int),
	}

	brands, err := src.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	for i := range brands {
		b := brands[i]
		r.brandsByForm[Canonicalize(b.Name)] = b.ID
		r.markSlug(models.CandidateBrand, "", b.Slug)
	}

	categories, err := src.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for i := range categories {
		c := categories[i]
		r.catByID[c.ID] = &categories[i]
	}
	for i := range categories {
		c := &categories[i]
		scope := existingCategoryScope(c.ParentID)
		if r.catsByScope[scope] == nil {
			r.catsByScope[scope] = make(map[string]uuid.UUID)
		}
		r.catsByScope[scope][Canonicalize(c.Name)] = c.ID
		r.markSlug(models.CandidateCategory, scope, c.Slug)
	}

	series, err := src.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	for i := range series {
		s := &series[i]
		r.seriesByForm[Canonicalize(s.Name)] = s.ID
		r.seriesByID[s.ID] = s
		r.markSlug(models.CandidateSeries, "", s.Slug)
	}

	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		r.prodBySlug[products[i].Slug] = &products[i]
	}

	variants, err := src.ListVariants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	for i := range variants {
		r.varByCode[variants[i].ModelCode] = &variants[i]
	}

	return r, nil
}

func existingCategoryScope(parentID *uuid.UUID) string {
	if parentID == nil {
		return "root"
	}
	return parentID.String()
}

func categoryScope(parent *Ref) string {
	if parent == nil {
		return "root"
	}
	return parent.key()
}

func (r *Resolver) slugKey(typ models.CandidateType, scope, slug string) string {
	return string(typ) + "|" + scope + "|" + slug
}

func (r *Resolver) markSlug(typ models.CandidateType, scope, slug string) {
	r.slugsTaken[r.slugKey(typ, scope, slug)] = true
}

// allocateSlug derives a slug from the name and suffixes -1, -2, ... until
// it is unique within the type's scope. Deterministic for identical input
// against identical existing state.
func (r *Resolver) allocateSlug(typ models.CandidateType, scope, name string) string {
	base := Slugify(name)
	if base == "" {
		base = "item"
	}
	slug := base
	for n := 1; r.slugsTaken[r.slugKey(typ, scope, slug)]; n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	r.markSlug(typ, scope, slug)
	return slug
}

// FindBrand resolves a brand name against the global canonical index
func (r *Resolver) FindBrand(name string) (uuid.UUID, bool) {
	id, ok := r.brandsByForm[Canonicalize(name)]
	return id, ok
}

// CandidateBrand registers (or reuses) a pending brand for an unmatched name
func (r *Resolver) CandidateBrand(name string, row int) Ref {
	key := "brand||" + Canonicalize(name)
	if idx, ok := r.candidateKeys[key]; ok {
		return CandidateRef(idx)
	}
	idx := r.arena.Add(&Pending{
		Type:  models.CandidateBrand,
		Name:  name,
		Slug:  r.allocateSlug(models.CandidateBrand, "", name),
		Row:   row,
		Sheet: models.SheetProducts,
	})
	r.candidateKeys[key] = idx
	return CandidateRef(idx)
}

// FindCategory resolves a category name scoped to its parent (real or
// pending)
func (r *Resolver) FindCategory(parent *Ref, name string) (uuid.UUID, bool) {
	scoped := r.catsByScope[categoryScope(parent)]
	if scoped == nil {
		return uuid.Nil, false
	}
	id, ok := scoped[Canonicalize(name)]
	return id, ok
}

// CandidateCategory registers (or reuses) a pending category under the
// given parent scope
func (r *Resolver) CandidateCategory(parent *Ref, name string, row int) Ref {
	scope := categoryScope(parent)
	key := "category|" + scope + "|" + Canonicalize(name)
	if idx, ok := r.candidateKeys[key]; ok {
		return CandidateRef(idx)
	}
	var parentCopy *Ref
	if parent != nil {
		p := *parent
		parentCopy = &p
	}
	idx := r.arena.Add(&Pending{
		Type:   models.CandidateCategory,
		Name:   name,
		Slug:   r.allocateSlug(models.CandidateCategory, scope, name),
		Parent: parentCopy,
		Row:    row,
		Sheet:  models.SheetProducts,
	})
	r.candidateKeys[key] = idx
	return CandidateRef(idx)
}

// FindSeries resolves a series name against the global canonical index
func (r *Resolver) FindSeries(name string) (uuid.UUID, bool) {
	id, ok := r.seriesByForm[Canonicalize(name)]
	return id, ok
}

// SeriesByID returns the indexed series record
func (r *Resolver) SeriesByID(id uuid.UUID) *models.Series { return r.seriesByID[id] }

// CategoryByID returns the indexed category record
func (r *Resolver) CategoryByID(id uuid.UUID) *models.Category { return r.catByID[id] }

// CandidateSeries registers (or reuses) a pending series owned by the given
// category. Series slugs are globally unique, so slug allocation ignores
// the category scope while candidate dedup honors it.
func (r *Resolver) CandidateSeries(name string, category Ref, row int) Ref {
	key := "series|" + category.key() + "|" + Canonicalize(name)
	if idx, ok := r.candidateKeys[key]; ok {
		return CandidateRef(idx)
	}
	parent := category
	idx := r.arena.Add(&Pending{
		Type:   models.CandidateSeries,
		Name:   name,
		Slug:   r.allocateSlug(models.CandidateSeries, "", name),
		Parent: &parent,
		Row:    row,
		Sheet:  models.SheetProducts,
	})
	r.candidateKeys[key] = idx
	return CandidateRef(idx)
}

// CandidateProduct registers a pending product so later variant rows can
// reference it before it exists. Product slugs are an identity, not
// auto-suffixed: an in-file duplicate is a row error, not a collision.
func (r *Resolver) CandidateProduct(name, slug string, row int) Ref {
	idx := r.arena.Add(&Pending{
		Type:  models.CandidateProduct,
		Name:  name,
		Slug:  slug,
		Row:   row,
		Sheet: models.SheetProducts,
	})
	return CandidateRef(idx)
}

// ProductBySlug returns the indexed existing product, if any
func (r *Resolver) ProductBySlug(slug string) *models.Product { return r.prodBySlug[slug] }

// VariantByCode returns the indexed existing variant, if any
func (r *Resolver) VariantByCode(code string) *models.Variant { return r.varByCode[code] }
