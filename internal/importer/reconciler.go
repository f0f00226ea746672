package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"catalog-service/internal/models"
)

// Options are the policy knobs a validate call fixes for the whole job.
// Commit replays the snapshot with the same options recorded on the job.
type Options struct {
	Mode                         models.ImportMode
	TreatSlashAsHierarchy        bool
	AllowCreateMissingCategories bool
}

func (o Options) smart() bool { return o.Mode == models.ImportModeSmart }

// Reconciler turns parsed rows into create/update/skip intents by comparing
// resolved row data against existing catalog state. Row problems become
// RowIssue values on the plan; the scan never stops on a bad row.
type Reconciler struct {
	resolver  *Resolver
	hierarchy *HierarchyBuilder
	opts      Options
}

func NewReconciler(resolver *Resolver, opts Options) *Reconciler {
	return &Reconciler{
		resolver:  resolver,
		hierarchy: NewHierarchyBuilder(resolver, opts.TreatSlashAsHierarchy, opts.AllowCreateMissingCategories, opts.smart()),
		opts:      opts,
	}
}

// BuildPlan reconciles every row of the workbook. The context carries the
// validate deadline; exceeding it is a job-level failure since a
// partial row scan produces no meaningful report.
func BuildPlan(ctx context.Context, src CatalogSource, wb *Workbook, opts Options) (*Plan, error) {
	plan := &Plan{}
	resolver, err := NewResolver(ctx, src, &plan.Arena)
	if err != nil {
		return nil, err
	}
	rc := NewReconciler(resolver, opts)

	// product slug -> index into plan.Products, for in-file duplicate
	// detection and for variant rows referencing products created earlier
	// in the same batch
	batchProducts := make(map[string]int)

	for i := range wb.Products {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validate deadline exceeded: %w", err)
		}
		rc.reconcileProduct(plan, &wb.Products[i], batchProducts)
	}

	batchCodes := make(map[string]int)
	for i := range wb.Variants {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validate deadline exceeded: %w", err)
		}
		rc.reconcileVariant(plan, &wb.Variants[i], batchProducts, batchCodes)
	}

	return plan, nil
}

func (rc *Reconciler) reconcileProduct(plan *Plan, row *ProductRow, batchProducts map[string]int) {
	issue := func(severity models.IssueSeverity, field, code, message string) {
		plan.addIssue(models.RowIssue{
			Severity: severity, Row: row.Line, Sheet: models.SheetProducts,
			Field: field, Code: code, Message: message,
		})
	}

	if row.Name == "" {
		issue(models.SeverityError, "Product Name", "REQUIRED", "Product Name is required")
		return
	}

	slug := row.Slug
	if slug == "" {
		slug = Slugify(row.Name)
	}
	if slug == "" {
		issue(models.SeverityError, "Product Slug", "INVALID", "could not derive a slug from the product name")
		return
	}
	if prev, dup := batchProducts[slug]; dup {
		issue(models.SeverityError, "Product Slug", "DUPLICATE_IN_FILE",
			fmt.Sprintf("slug %q already used by row %d of this upload", slug, plan.Products[prev].Row))
		return
	}

	brandRef, brandErr := rc.resolveBrand(row)
	if brandErr != nil {
		issue(models.SeverityError, brandErr.Field, brandErr.Code, brandErr.Message)
		return
	}

	chain, pathErr := rc.hierarchy.Resolve(row.CategoryPath, row.Line)
	if pathErr != nil {
		issue(models.SeverityError, pathErr.Field, pathErr.Code, pathErr.Message)
		return
	}
	leaf := chain[len(chain)-1]

	seriesRef, categoryRef, seriesWarn, seriesErr := rc.resolveSeries(row, leaf)
	if seriesErr != nil {
		issue(models.SeverityError, seriesErr.Field, seriesErr.Code, seriesErr.Message)
		return
	}
	if seriesWarn != nil {
		issue(models.SeverityWarning, seriesWarn.Field, seriesWarn.Code, seriesWarn.Message)
	}

	status, featured := rc.parseStatusAndFeatured(row, issue)

	op := ProductOp{
		Row:        row.Line,
		Brand:      brandRef,
		Categories: chain,
		Series:     seriesRef,
	}
	// denormalized category always follows the owning series
	op.Categories[len(op.Categories)-1] = categoryRef

	if existing := rc.resolver.ProductBySlug(slug); existing != nil {
		op.Target = ExistingRef(existing.ID)
		op.Existing = existing
		op.Updates = rc.diffProduct(existing, row, status, featured)
		if len(op.Updates) == 0 {
			op.Action = ActionSkip
		} else {
			op.Action = ActionUpdate
		}
	} else {
		op.Action = ActionCreate
		op.Target = rc.resolver.CandidateProduct(row.Name, slug, row.Line)
		op.New = models.Product{
			Name:            row.Name,
			Slug:            slug,
			TitleTR:         optionalString(row.TitleTR),
			TitleEN:         optionalString(row.TitleEN),
			Status:          status,
			IsFeatured:      featured,
			LongDescription: optionalString(row.LongDescription),
			GeneralFeatures: optionalString(row.GeneralFeatures),
			ShortSpecs:      optionalString(row.ShortSpecs),
			TaxonomyPath:    optionalString(row.TaxonomyPath),
		}
	}

	plan.Products = append(plan.Products, op)
	batchProducts[slug] = len(plan.Products) - 1
}

func (rc *Reconciler) resolveBrand(row *ProductRow) (Ref, *resolveError) {
	if row.Brand == "" {
		return Ref{}, &resolveError{Code: "REQUIRED", Field: "Brand", Message: "Brand is required"}
	}
	if id, ok := rc.resolver.FindBrand(row.Brand); ok {
		return ExistingRef(id), nil
	}
	if !rc.opts.smart() {
		return Ref{}, &resolveError{
			Code: "UNRESOLVED_BRAND", Field: "Brand",
			Message: fmt.Sprintf("brand %q does not exist", row.Brand),
		}
	}
	return rc.resolver.CandidateBrand(row.Brand, row.Line), nil
}

// resolveSeries returns the series ref plus the category ref the product
// must denormalize. When the series already exists its owning category
// wins, with a warning if the row pointed somewhere else.
func (rc *Reconciler) resolveSeries(row *ProductRow, leaf Ref) (Ref, Ref, *resolveError, *resolveError) {
	if row.Series == "" {
		return Ref{}, Ref{}, nil, &resolveError{Code: "REQUIRED", Field: "Series", Message: "Series is required"}
	}
	if id, ok := rc.resolver.FindSeries(row.Series); ok {
		series := rc.resolver.SeriesByID(id)
		categoryRef := ExistingRef(series.CategoryID)
		var warn *resolveError
		if leaf.IsCandidate() || leaf.ID != series.CategoryID {
			warn = &resolveError{
				Code: "SERIES_CATEGORY_MISMATCH", Field: "Series",
				Message: fmt.Sprintf("series %q already belongs to a different category; keeping its current one", row.Series),
			}
		}
		return ExistingRef(id), categoryRef, warn, nil
	}
	if !rc.opts.smart() {
		return Ref{}, Ref{}, nil, &resolveError{
			Code: "UNRESOLVED_SERIES", Field: "Series",
			Message: fmt.Sprintf("series %q does not exist", row.Series),
		}
	}
	return rc.resolver.CandidateSeries(row.Series, leaf, row.Line), leaf, nil, nil
}

func (rc *Reconciler) parseStatusAndFeatured(row *ProductRow, issue func(models.IssueSeverity, string, string, string)) (models.ProductStatus, bool) {
	status := models.ProductStatusDraft
	if row.Status != "" {
		switch models.ProductStatus(strings.ToUpper(row.Status)) {
		case models.ProductStatusDraft, models.ProductStatusActive, models.ProductStatusInactive, models.ProductStatusArchived:
			status = models.ProductStatus(strings.ToUpper(row.Status))
		default:
			issue(models.SeverityWarning, "Status", "DEFAULT_SUBSTITUTED",
				fmt.Sprintf("unknown status %q, defaulting to DRAFT", row.Status))
		}
	}

	featured := false
	if row.IsFeatured != "" {
		if parsed, err := parseBool(row.IsFeatured); err != nil {
			issue(models.SeverityWarning, "Is Featured", "DEFAULT_SUBSTITUTED",
				fmt.Sprintf("unparseable boolean %q, defaulting to false", row.IsFeatured))
		} else {
			featured = parsed
		}
	}
	return status, featured
}

// diffProduct collects only the mapped fields that actually differ. Fields
// absent from the row are left untouched, never nulled. Reference columns
// (brand/series/category) are reconciled by the committer once candidate
// ids exist.
func (rc *Reconciler) diffProduct(existing *models.Product, row *ProductRow, status models.ProductStatus, featured bool) map[string]interface{} {
	updates := make(map[string]interface{})
	if row.Name != existing.Name {
		updates["name"] = row.Name
	}
	diffOptional(updates, "title_tr", row.TitleTR, existing.TitleTR)
	diffOptional(updates, "title_en", row.TitleEN, existing.TitleEN)
	if row.Status != "" && status != existing.Status {
		updates["status"] = status
	}
	if row.IsFeatured != "" && featured != existing.IsFeatured {
		updates["is_featured"] = featured
	}
	diffOptional(updates, "long_description", row.LongDescription, existing.LongDescription)
	diffOptional(updates, "general_features", row.GeneralFeatures, existing.GeneralFeatures)
	diffOptional(updates, "short_specs", row.ShortSpecs, existing.ShortSpecs)
	diffOptional(updates, "taxonomy_path", row.TaxonomyPath, existing.TaxonomyPath)
	return updates
}

func (rc *Reconciler) reconcileVariant(plan *Plan, row *VariantRow, batchProducts map[string]int, batchCodes map[string]int) {
	issue := func(severity models.IssueSeverity, field, code, message string) {
		plan.addIssue(models.RowIssue{
			Severity: severity, Row: row.Line, Sheet: models.SheetVariants,
			Field: field, Code: code, Message: message,
		})
	}

	if row.ModelCode == "" {
		issue(models.SeverityError, "Model Code", "REQUIRED", "Model Code is required")
		return
	}
	if row.ProductSlug == "" {
		issue(models.SeverityError, "Product Slug", "REQUIRED", "Product Slug is required")
		return
	}
	if prev, dup := batchCodes[row.ModelCode]; dup {
		issue(models.SeverityError, "Model Code", "DUPLICATE_IN_FILE",
			fmt.Sprintf("model code %q already used by row %d of this upload", row.ModelCode, plan.Variants[prev].Row))
		return
	}

	productRef, refErr := rc.resolveVariantProduct(plan, row, batchProducts)
	if refErr != nil {
		issue(models.SeverityError, refErr.Field, refErr.Code, refErr.Message)
		return
	}

	weight, listPrice, stockQty, numErr := parseVariantNumbers(row)
	if numErr != nil {
		issue(models.SeverityError, numErr.Field, numErr.Code, numErr.Message)
		return
	}

	op := VariantOp{Row: row.Line, Product: productRef}
	if existing := rc.resolver.VariantByCode(row.ModelCode); existing != nil {
		op.Existing = existing
		op.Updates = diffVariant(existing, row, weight, listPrice, stockQty)
		if !productRef.IsCandidate() && productRef.ID != existing.ProductID {
			op.Updates["product_id"] = productRef.ID
		}
		if len(op.Updates) == 0 {
			op.Action = ActionSkip
		} else {
			op.Action = ActionUpdate
		}
	} else {
		op.Action = ActionCreate
		op.New = models.Variant{
			ModelCode:  row.ModelCode,
			NameTR:     optionalString(row.NameTR),
			NameEN:     optionalString(row.NameEN),
			SKU:        optionalString(row.SKU),
			Dimensions: optionalString(row.Dimensions),
			Weight:     weight,
			ListPrice:  listPrice,
			StockQty:   stockQty,
			Specs:      specsToJSONMap(row.Specs),
		}
	}

	plan.Variants = append(plan.Variants, op)
	batchCodes[row.ModelCode] = len(plan.Variants) - 1
}

// resolveVariantProduct resolves the owning product from the database or
// from a product created earlier in the same upload batch.
func (rc *Reconciler) resolveVariantProduct(plan *Plan, row *VariantRow, batchProducts map[string]int) (Ref, *resolveError) {
	if idx, ok := batchProducts[row.ProductSlug]; ok {
		return plan.Products[idx].Target, nil
	}
	if existing := rc.resolver.ProductBySlug(row.ProductSlug); existing != nil {
		return ExistingRef(existing.ID), nil
	}
	return Ref{}, &resolveError{
		Code: "UNRESOLVED_PRODUCT", Field: "Product Slug",
		Message: fmt.Sprintf("product %q exists neither in the catalog nor earlier in this upload", row.ProductSlug),
	}
}

func parseVariantNumbers(row *VariantRow) (*float64, *float64, *int, *resolveError) {
	weight, err := optionalFloat(row.Weight)
	if err != nil {
		return nil, nil, nil, &resolveError{Code: "INVALID_NUMBER", Field: "Weight", Message: fmt.Sprintf("%q is not a number", row.Weight)}
	}
	listPrice, err := optionalFloat(row.ListPrice)
	if err != nil {
		return nil, nil, nil, &resolveError{Code: "INVALID_NUMBER", Field: "List Price", Message: fmt.Sprintf("%q is not a number", row.ListPrice)}
	}
	stockQty, err := optionalInt(row.StockQty)
	if err != nil {
		return nil, nil, nil, &resolveError{Code: "INVALID_NUMBER", Field: "Stock Qty", Message: fmt.Sprintf("%q is not an integer", row.StockQty)}
	}
	return weight, listPrice, stockQty, nil
}

func diffVariant(existing *models.Variant, row *VariantRow, weight, listPrice *float64, stockQty *int) map[string]interface{} {
	updates := make(map[string]interface{})
	diffOptional(updates, "name_tr", row.NameTR, existing.NameTR)
	diffOptional(updates, "name_en", row.NameEN, existing.NameEN)
	diffOptional(updates, "sku", row.SKU, existing.SKU)
	diffOptional(updates, "dimensions", row.Dimensions, existing.Dimensions)
	if weight != nil && (existing.Weight == nil || *existing.Weight != *weight) {
		updates["weight"] = *weight
	}
	if listPrice != nil && (existing.ListPrice == nil || *existing.ListPrice != *listPrice) {
		updates["list_price"] = *listPrice
	}
	if stockQty != nil && (existing.StockQty == nil || *existing.StockQty != *stockQty) {
		updates["stock_qty"] = *stockQty
	}
	if len(row.Specs) > 0 {
		merged := mergeSpecs(existing.Specs, row.Specs)
		if merged != nil {
			updates["specs"] = datatypes.JSONMap(merged)
		}
	}
	return updates
}

// mergeSpecs overlays row spec keys onto the existing map; keys absent from
// the row are preserved. Returns nil when nothing changed.
func mergeSpecs(existing map[string]interface{}, incoming map[string]string) map[string]interface{} {
	changed := false
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if cur, ok := merged[k]; !ok || cur != v {
			merged[k] = v
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return merged
}

func specsToJSONMap(specs map[string]string) map[string]interface{} {
	if len(specs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(specs))
	for k, v := range specs {
		out[k] = v
	}
	return out
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// diffOptional adds column=value when the row provides a value that differs
// from the current one. Empty cells never null a field.
func diffOptional(updates map[string]interface{}, column, rowValue string, current *string) {
	if rowValue == "" {
		return
	}
	if current == nil || *current != rowValue {
		updates[column] = rowValue
	}
}

func optionalFloat(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	normalized := value
	if strings.Contains(value, ",") {
		if strings.Contains(value, ".") {
			// dot already marks the decimals, commas separate thousands
			normalized = strings.ReplaceAll(value, ",", "")
		} else {
			// tolerate a decimal comma, common in Turkish-locale spreadsheets
			normalized = strings.ReplaceAll(value, ",", ".")
		}
	}
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optionalInt(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "evet":
		return true, nil
	case "false", "0", "no", "hayır", "hayir":
		return false, nil
	}
	return false, fmt.Errorf("unparseable boolean %q", value)
}
