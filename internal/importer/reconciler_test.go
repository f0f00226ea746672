package importer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

var smartOpts = Options{
	Mode:                         models.ImportModeSmart,
	TreatSlashAsHierarchy:        true,
	AllowCreateMissingCategories: true,
}

var strictOpts = Options{
	Mode:                         models.ImportModeStrict,
	TreatSlashAsHierarchy:        true,
	AllowCreateMissingCategories: true,
}

func buildTestPlan(t *testing.T, src CatalogSource, opts Options, products, variants [][]string) *Plan {
	t.Helper()
	wb, err := ParseUpload(xlsxBytes(t, products, variants), "catalog.xlsx")
	require.NoError(t, err)
	plan, err := BuildPlan(context.Background(), src, wb, opts)
	require.NoError(t, err)
	return plan
}

func TestBuildPlanSmartModeCreatesCandidates(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"GastroTech", "Pişirme Üniteleri", "600 Series", "Gazlı Ocak", "gazli-ocak-600", "Gazlı Ocak 600", "Gas Range 600", "ACTIVE", "false"},
		},
		[][]string{
			{"gazli-ocak-600", "GT-600-GO4", "4 Gözlü", "52.5", "1450", "12", "7.8 kW"},
		})

	assert.False(t, plan.HasErrors())
	require.Len(t, plan.Products, 1)
	require.Len(t, plan.Variants, 1)
	assert.Equal(t, ActionCreate, plan.Products[0].Action)
	assert.Equal(t, ActionCreate, plan.Variants[0].Action)
	assert.Equal(t, plan.Products[0].Target, plan.Variants[0].Product,
		"variant must reference the product candidate from the same file")

	candidates := plan.Candidates()
	bySlug := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		bySlug[c.Slug] = c
	}
	assert.Contains(t, bySlug, "gastrotech")
	assert.Contains(t, bySlug, "pisirme-uniteleri")
	assert.Contains(t, bySlug, "600-series")
	assert.Contains(t, bySlug, "gazli-ocak-600")
	assert.Equal(t, models.CandidateBrand, bySlug["gastrotech"].EntityType)
	assert.Equal(t, models.CandidateCategory, bySlug["pisirme-uniteleri"].EntityType)
	assert.Equal(t, models.CandidateSeries, bySlug["600-series"].EntityType)
	assert.Equal(t, "pisirme-uniteleri", bySlug["600-series"].ParentSlug,
		"series candidate parent is the pending category's slug")

	counts := plan.Counts(2)
	assert.Equal(t, 2, counts.Creates)
	assert.Equal(t, 0, counts.Errors)
}

func TestBuildPlanStrictModeRejectsUnresolved(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, strictOpts,
		[][]string{
			{"GastroTech", "Pişirme Üniteleri", "600 Series", "Gazlı Ocak"},
		}, nil)

	assert.True(t, plan.HasErrors())
	assert.Empty(t, plan.Products)
	require.NotEmpty(t, plan.Issues)
	assert.Equal(t, "UNRESOLVED_BRAND", plan.Issues[0].Code)
	assert.Empty(t, plan.Candidates(), "strict mode never proposes candidates")
}

func existingCatalog() *memSource {
	brandID := uuid.New()
	categoryID := uuid.New()
	seriesID := uuid.New()
	productID := uuid.New()
	title := "Gazlı Ocak 600"
	weight := 52.5
	return &memSource{
		brands:     []models.Brand{{ID: brandID, Name: "GastroTech", Slug: "gastrotech"}},
		categories: []models.Category{{ID: categoryID, Name: "Pişirme Üniteleri", Slug: "pisirme-uniteleri", Level: 0}},
		series:     []models.Series{{ID: seriesID, CategoryID: categoryID, Name: "600 Series", Slug: "600-series"}},
		products: []models.Product{{
			ID: productID, BrandID: brandID, SeriesID: seriesID, CategoryID: categoryID,
			Name: "Gazlı Ocak", Slug: "gazli-ocak-600", TitleTR: &title,
			Status: models.ProductStatusActive,
		}},
		variants: []models.Variant{{
			ID: uuid.New(), ProductID: productID, ModelCode: "GT-600-GO4", Weight: &weight,
		}},
	}
}

func TestBuildPlanIdenticalRowsSkip(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), strictOpts,
		[][]string{
			{"GastroTech", "Pişirme Üniteleri", "600 Series", "Gazlı Ocak", "gazli-ocak-600", "Gazlı Ocak 600", "", "ACTIVE", ""},
		},
		[][]string{
			{"gazli-ocak-600", "GT-600-GO4", "", "52.5", "", "", ""},
		})

	assert.False(t, plan.HasErrors())
	require.Len(t, plan.Products, 1)
	assert.Equal(t, ActionSkip, plan.Products[0].Action)
	require.Len(t, plan.Variants, 1)
	assert.Equal(t, ActionSkip, plan.Variants[0].Action)
	assert.Empty(t, plan.Candidates())
}

func TestBuildPlanDiffProducesUpdate(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), strictOpts,
		[][]string{
			{"GastroTech", "Pişirme Üniteleri", "600 Series", "Gazlı Ocak", "gazli-ocak-600", "Gazlı Ocak 600 Pro", "", "INACTIVE", ""},
		},
		[][]string{
			{"gazli-ocak-600", "GT-600-GO4", "", "53.0", "1500", "", ""},
		})

	require.Len(t, plan.Products, 1)
	op := plan.Products[0]
	assert.Equal(t, ActionUpdate, op.Action)
	assert.Equal(t, "Gazlı Ocak 600 Pro", op.Updates["title_tr"])
	assert.Equal(t, models.ProductStatusInactive, op.Updates["status"])
	assert.NotContains(t, op.Updates, "name", "unchanged fields stay out of the update set")

	require.Len(t, plan.Variants, 1)
	vop := plan.Variants[0]
	assert.Equal(t, ActionUpdate, vop.Action)
	assert.Equal(t, 53.0, vop.Updates["weight"])
	assert.Equal(t, 1500.0, vop.Updates["list_price"])
}

func TestBuildPlanEmptyCellsNeverNullFields(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), strictOpts,
		[][]string{
			// Title (TR) left empty although the catalog has one
			{"GastroTech", "Pişirme Üniteleri", "600 Series", "Gazlı Ocak", "gazli-ocak-600", "", "", "", ""},
		}, nil)

	require.Len(t, plan.Products, 1)
	op := plan.Products[0]
	assert.NotContains(t, op.Updates, "title_tr")
	assert.NotContains(t, op.Updates, "status", "empty status must not reset an ACTIVE product to DRAFT")
	assert.Equal(t, ActionSkip, op.Action)
}

func TestBuildPlanDuplicateSlugInFile(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"GastroTech", "Pişirme", "600 Series", "Gazlı Ocak", "gazli-ocak"},
			{"GastroTech", "Pişirme", "600 Series", "Gazlı Ocak II", "gazli-ocak"},
		}, nil)

	assert.True(t, plan.HasErrors())
	require.Len(t, plan.Products, 1, "second occurrence is rejected, first stands")
	found := false
	for _, issue := range plan.Issues {
		if issue.Code == "DUPLICATE_IN_FILE" {
			found = true
			assert.Equal(t, 3, issue.Row)
		}
	}
	assert.True(t, found)
}

func TestBuildPlanDuplicateModelCodeInFile(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"GastroTech", "Pişirme", "600 Series", "Gazlı Ocak", "gazli-ocak"},
		},
		[][]string{
			{"gazli-ocak", "GT-1"},
			{"gazli-ocak", "GT-1"},
		})

	assert.True(t, plan.HasErrors())
	assert.Len(t, plan.Variants, 1)
}

func TestBuildPlanUnresolvedVariantProduct(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts, nil,
		[][]string{
			{"no-such-product", "GT-1"},
		})

	assert.True(t, plan.HasErrors())
	require.Len(t, plan.Issues, 1)
	assert.Equal(t, "UNRESOLVED_PRODUCT", plan.Issues[0].Code)
}

func TestBuildPlanInvalidNumberIsRowError(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), strictOpts, nil,
		[][]string{
			{"gazli-ocak-600", "GT-NEW-1", "", "heavy", "", "", ""},
		})

	assert.True(t, plan.HasErrors())
	require.Len(t, plan.Issues, 1)
	assert.Equal(t, "INVALID_NUMBER", plan.Issues[0].Code)
	assert.Equal(t, "Weight", plan.Issues[0].Field)
	assert.Empty(t, plan.Variants)
}

func TestBuildPlanAcceptsLocaleNumberFormats(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), strictOpts, nil,
		[][]string{
			{"gazli-ocak-600", "GT-NEW-2", "", "52,5", "1,450.00", "", ""},
		})

	assert.False(t, plan.HasErrors())
	require.Len(t, plan.Variants, 1)
	op := plan.Variants[0]
	require.NotNil(t, op.New.Weight)
	assert.InDelta(t, 52.5, *op.New.Weight, 0.001, "decimal comma")
	require.NotNil(t, op.New.ListPrice)
	assert.InDelta(t, 1450.0, *op.New.ListPrice, 0.001, "thousands comma with decimal dot")
}

func TestBuildPlanUnknownStatusWarns(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"GastroTech", "Pişirme", "600 Series", "Gazlı Ocak", "", "", "", "SHINY", ""},
		}, nil)

	assert.False(t, plan.HasErrors(), "unknown status is a warning, not an error")
	require.Len(t, plan.Products, 1)
	assert.Equal(t, models.ProductStatusDraft, plan.Products[0].New.Status)
	warned := false
	for _, issue := range plan.Issues {
		if issue.Code == "DEFAULT_SUBSTITUTED" && issue.Severity == models.SeverityWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestBuildPlanSeriesKeepsItsCategory(t *testing.T) {
	src := existingCatalog()
	otherCat := models.Category{ID: uuid.New(), Name: "Hazırlık", Slug: "hazirlik", Level: 0}
	src.categories = append(src.categories, otherCat)

	plan := buildTestPlan(t, src, strictOpts,
		[][]string{
			{"GastroTech", "Hazırlık", "600 Series", "Gazlı Ocak", "gazli-ocak-600"},
		}, nil)

	assert.False(t, plan.HasErrors())
	require.Len(t, plan.Products, 1)
	op := plan.Products[0]
	leaf := op.Categories[len(op.Categories)-1]
	assert.Equal(t, src.series[0].CategoryID, leaf.ID, "existing series' category wins over the row's path")

	warned := false
	for _, issue := range plan.Issues {
		if issue.Code == "SERIES_CATEGORY_MISMATCH" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestBuildPlanExistingSeriesDropsCategoryCandidate(t *testing.T) {
	plan := buildTestPlan(t, existingCatalog(), smartOpts,
		[][]string{
			{"GastroTech", "Yeni Kategori", "600 Series", "Gazlı Ocak", "gazli-ocak-600"},
		}, nil)

	assert.False(t, plan.HasErrors())
	require.Len(t, plan.Products, 1)
	op := plan.Products[0]
	leaf := op.Categories[len(op.Categories)-1]
	assert.False(t, leaf.IsCandidate(), "existing series' category replaces the proposed one")

	for _, c := range plan.Candidates() {
		assert.NotEqual(t, "yeni-kategori", c.Slug,
			"a category commit will never create must not be reported")
	}

	warned := false
	for _, issue := range plan.Issues {
		if issue.Code == "SERIES_CATEGORY_MISMATCH" {
			warned = true
		}
	}
	assert.True(t, warned, "the dropped category still warrants a mismatch warning")
}

func TestBuildPlanErroredRowCandidatesDropped(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"Yeni Marka", "Yeni Kategori", "", "Gazlı Ocak"},
		}, nil)

	assert.True(t, plan.HasErrors())
	assert.Empty(t, plan.Products)
	assert.Empty(t, plan.Candidates(),
		"candidates proposed by a row that later errored must not be reported")
}

func TestBuildPlanSharedCandidateSurvivesRowError(t *testing.T) {
	plan := buildTestPlan(t, &memSource{}, smartOpts,
		[][]string{
			{"Yeni Marka", "Yeni Kategori", "", "Gazlı Ocak"},
			{"Yeni Marka", "Yeni Kategori", "Seri A", "Elektrikli Ocak", ""},
		}, nil)

	assert.True(t, plan.HasErrors())
	require.Len(t, plan.Products, 1)

	bySlug := make(map[string]models.Candidate)
	for _, c := range plan.Candidates() {
		bySlug[c.Slug] = c
	}
	assert.Contains(t, bySlug, "yeni-marka", "the surviving row still references the shared brand")
	assert.Contains(t, bySlug, "yeni-kategori")
	assert.Contains(t, bySlug, "seri-a")
}

func TestBuildPlanDeterministicReplay(t *testing.T) {
	products := [][]string{
		{"GastroTech", "Pişirme / Fırınlar", "600 Series", "Gazlı Ocak", ""},
		{"CoolServe", "Soğutma", "Frost Line", "Tezgahaltı Buzdolabı", ""},
	}
	variants := [][]string{
		{"gazli-ocak", "GT-1", "", "52.5", "", "", ""},
	}

	first := buildTestPlan(t, &memSource{}, smartOpts, products, variants)
	second := buildTestPlan(t, &memSource{}, smartOpts, products, variants)

	assert.Equal(t, first.Candidates(), second.Candidates())
	assert.Equal(t, first.Counts(3), second.Counts(3))
}

func TestBuildPlanHonorsContextDeadline(t *testing.T) {
	wb, err := ParseUpload(xlsxBytes(t, [][]string{
		{"GastroTech", "Pişirme", "600 Series", "Gazlı Ocak"},
	}, nil), "catalog.xlsx")
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err = BuildPlan(ctx, &memSource{}, wb, smartOpts)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
