package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

var (
	// ErrJobTerminal is returned when commit is called on a finished job
	ErrJobTerminal = errors.New("import job already reached a terminal state")
	// ErrJobNotCommittable is returned when the job has not passed
	// validation yet
	ErrJobNotCommittable = errors.New("import job has not passed validation")
	// ErrFlagMismatch is returned when commit-time hierarchy flags differ
	// from the ones validation ran with
	ErrFlagMismatch = errors.New("commit flags differ from the validated ones")
	// ErrSnapshotMismatch is returned when the stored snapshot no longer
	// matches the hash recorded at validation time
	ErrSnapshotMismatch = errors.New("snapshot hash mismatch")
	// ErrReportHasErrors is returned when a non-partial commit meets a
	// report with row errors
	ErrReportHasErrors = errors.New("validation report contains row errors")
)

// Committer runs the commit phase: verify the snapshot, rebuild the plan
// deterministically and apply it in dependency order. The plan is never
// persisted between phases; the snapshot is the one source of truth.
type Committer struct {
	catalog   *repository.CatalogRepository
	jobs      *repository.ImportJobRepository
	snapshots SnapshotStore
	log       *logrus.Logger
}

func NewCommitter(catalog *repository.CatalogRepository, jobs *repository.ImportJobRepository, snapshots SnapshotStore, log *logrus.Logger) *Committer {
	return &Committer{catalog: catalog, jobs: jobs, snapshots: snapshots, log: log}
}

// CommitRequest identifies the job and fixes commit-time policy. The
// hierarchy flags are optional; when given they must match the values the
// job validated with.
type CommitRequest struct {
	JobID                        uuid.UUID
	AllowPartial                 bool
	TreatSlashAsHierarchy        *bool
	AllowCreateMissingCategories *bool
}

// Commit applies a validated job to the catalog. With AllowPartial false
// the whole commit is one transaction and any failure rolls everything
// back; with AllowPartial true each product row cascade and each variant
// row runs in its own transaction and failures are recorded per row.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*models.ImportJob, *models.CommitSummary, error) {
	job, err := c.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil, fmt.Errorf("%w: %s", ErrJobTerminal, job.Status)
	}
	if job.Status != models.ImportStatusValidationPassed {
		return job, nil, fmt.Errorf("%w: status is %s", ErrJobNotCommittable, job.Status)
	}
	if req.TreatSlashAsHierarchy != nil && *req.TreatSlashAsHierarchy != job.TreatSlashAsHierarchy {
		return job, nil, fmt.Errorf("%w: treat_slash_as_hierarchy", ErrFlagMismatch)
	}
	if req.AllowCreateMissingCategories != nil && *req.AllowCreateMissingCategories != job.AllowCreateMissingCategories {
		return job, nil, fmt.Errorf("%w: allow_create_missing_categories", ErrFlagMismatch)
	}

	// fail closed before touching anything when the snapshot was altered
	data, err := c.snapshots.Verify(job.SnapshotRef, job.SnapshotHash)
	if err != nil {
		c.recordJobError(ctx, job, err)
		return job, nil, fmt.Errorf("%w: %v", ErrSnapshotMismatch, err)
	}

	wb, err := ParseUpload(data, job.FileName)
	if err != nil {
		c.recordJobError(ctx, job, err)
		return job, nil, fmt.Errorf("reparse snapshot: %w", err)
	}

	if err := c.jobs.Transition(ctx, job, models.ImportStatusCommitting); err != nil {
		return job, nil, err
	}

	log := c.log.WithFields(logrus.Fields{
		"job_id":        job.ID,
		"allow_partial": req.AllowPartial,
	})
	log.Info("Starting catalog import commit")

	plan, err := BuildPlan(ctx, c.catalog, wb, Options{
		Mode:                         job.Mode,
		TreatSlashAsHierarchy:        job.TreatSlashAsHierarchy,
		AllowCreateMissingCategories: job.AllowCreateMissingCategories,
	})
	if err != nil {
		return job, nil, c.failCommit(ctx, job, err)
	}

	if !req.AllowPartial && (job.ErrorCount > 0 || plan.HasErrors()) {
		return job, nil, c.failCommit(ctx, job, ErrReportHasErrors)
	}

	st := newCommitState(plan, job.CreatedBy)
	if req.AllowPartial {
		c.applyPartial(ctx, st)
	} else {
		err = c.catalog.WithTransaction(func(tx *repository.CatalogRepository) error {
			return st.applyAll(ctx, tx)
		})
		if err != nil {
			return job, nil, c.failCommit(ctx, job, err)
		}
	}
	summary := st.summary

	job.IsPreview = false
	job.AllowPartial = req.AllowPartial
	if err := c.finishJob(ctx, job, plan, summary); err != nil {
		return job, summary, err
	}
	c.catalog.InvalidateCatalogCaches(ctx)

	log.WithFields(logrus.Fields{
		"brands_created":     summary.BrandsCreated,
		"categories_created": summary.CategoriesCreated,
		"series_created":     summary.SeriesCreated,
		"products_created":   summary.ProductsCreated,
		"products_updated":   summary.ProductsUpdated,
		"variants_created":   summary.VariantsCreated,
		"variants_updated":   summary.VariantsUpdated,
		"row_failures":       len(summary.Errors),
	}).Info("Catalog import commit finished")

	return job, summary, nil
}

// applyPartial commits each product row cascade and each variant row in its
// own transaction. Shared candidate ids only become visible to later rows
// when the transaction that created them committed.
func (c *Committer) applyPartial(ctx context.Context, st *commitState) {
	for i := range st.plan.Products {
		op := &st.plan.Products[i]
		scratch := st.fork()
		err := c.catalog.WithTransaction(func(tx *repository.CatalogRepository) error {
			return scratch.applyProduct(ctx, tx, op)
		})
		if err != nil {
			st.recordRowFailure(models.SheetProducts, op.Row, err)
			continue
		}
		st.merge(scratch)
	}
	for i := range st.plan.Variants {
		op := &st.plan.Variants[i]
		scratch := st.fork()
		err := c.catalog.WithTransaction(func(tx *repository.CatalogRepository) error {
			return scratch.applyVariant(ctx, tx, op)
		})
		if err != nil {
			st.recordRowFailure(models.SheetVariants, op.Row, err)
			continue
		}
		st.merge(scratch)
	}
}

// finishJob folds the commit summary into the stored report, refreshes the
// candidate list with the ids matched during apply, updates the counters
// and moves the job to completed.
func (c *Committer) finishJob(ctx context.Context, job *models.ImportJob, plan *Plan, summary *models.CommitSummary) error {
	report, err := job.GetReport()
	if err != nil || report == nil {
		report = &models.ImportReport{Issues: []models.RowIssue{}}
	}
	report.Candidates = plan.Candidates()
	report.Commit = summary
	if err := job.SetReport(report); err != nil {
		return c.failCommit(ctx, job, err)
	}
	job.CreatedCount = summary.ProductsCreated + summary.VariantsCreated
	job.UpdatedCount = summary.ProductsUpdated + summary.VariantsUpdated
	job.SkippedCount = summary.ProductsSkipped + summary.VariantsSkipped
	job.ErrorCount = report.Counts.Errors + len(summary.Errors)
	if err := c.jobs.Save(ctx, job); err != nil {
		return c.failCommit(ctx, job, err)
	}
	return c.jobs.Transition(ctx, job, models.ImportStatusCompleted)
}

func (c *Committer) failCommit(ctx context.Context, job *models.ImportJob, cause error) error {
	msg := cause.Error()
	job.JobError = &msg
	if err := c.jobs.Save(ctx, job); err != nil {
		c.log.WithError(err).WithField("job_id", job.ID).Error("Failed to record commit failure")
	}
	if err := c.jobs.Transition(ctx, job, models.ImportStatusFailed); err != nil {
		c.log.WithError(err).WithField("job_id", job.ID).Error("Failed to fail commit job")
	}
	c.log.WithError(cause).WithField("job_id", job.ID).Error("Catalog import commit failed")
	return cause
}

// recordJobError stores a pre-commit failure on the job without a status
// change, keeping the job retryable once the underlying issue is resolved.
func (c *Committer) recordJobError(ctx context.Context, job *models.ImportJob, cause error) {
	msg := cause.Error()
	job.JobError = &msg
	if err := c.jobs.Save(ctx, job); err != nil {
		c.log.WithError(err).WithField("job_id", job.ID).Error("Failed to record job error")
	}
}

// commitState tracks candidate resolution across rows of one commit.
// resolved maps arena indexes to the real ids created (or matched) so far.
type commitState struct {
	plan      *Plan
	summary   *models.CommitSummary
	resolved  map[int]uuid.UUID
	levels    map[uuid.UUID]int
	createdBy string
}

func newCommitState(plan *Plan, createdBy string) *commitState {
	return &commitState{
		plan:      plan,
		summary:   &models.CommitSummary{},
		resolved:  make(map[int]uuid.UUID),
		levels:    make(map[uuid.UUID]int),
		createdBy: createdBy,
	}
}

// fork copies the state for one sub-transaction so a rollback discards any
// candidate ids allocated inside it.
func (st *commitState) fork() *commitState {
	resolved := make(map[int]uuid.UUID, len(st.resolved))
	for k, v := range st.resolved {
		resolved[k] = v
	}
	levels := make(map[uuid.UUID]int, len(st.levels))
	for k, v := range st.levels {
		levels[k] = v
	}
	return &commitState{
		plan:      st.plan,
		summary:   &models.CommitSummary{},
		resolved:  resolved,
		levels:    levels,
		createdBy: st.createdBy,
	}
}

// merge folds a committed sub-transaction's state back in
func (st *commitState) merge(scratch *commitState) {
	st.resolved = scratch.resolved
	st.levels = scratch.levels
	s, d := scratch.summary, st.summary
	d.BrandsCreated += s.BrandsCreated
	d.CategoriesCreated += s.CategoriesCreated
	d.SeriesCreated += s.SeriesCreated
	d.ProductsCreated += s.ProductsCreated
	d.ProductsUpdated += s.ProductsUpdated
	d.ProductsSkipped += s.ProductsSkipped
	d.VariantsCreated += s.VariantsCreated
	d.VariantsUpdated += s.VariantsUpdated
	d.VariantsSkipped += s.VariantsSkipped
}

func (st *commitState) recordRowFailure(sheet string, row int, err error) {
	st.summary.Errors = append(st.summary.Errors, models.RowIssue{
		Severity: models.SeverityError,
		Row:      row,
		Sheet:    sheet,
		Code:     "COMMIT_FAILED",
		Message:  err.Error(),
	})
}

func (st *commitState) applyAll(ctx context.Context, tx *repository.CatalogRepository) error {
	for i := range st.plan.Products {
		if err := st.applyProduct(ctx, tx, &st.plan.Products[i]); err != nil {
			return fmt.Errorf("products row %d: %w", st.plan.Products[i].Row, err)
		}
	}
	for i := range st.plan.Variants {
		if err := st.applyVariant(ctx, tx, &st.plan.Variants[i]); err != nil {
			return fmt.Errorf("variants row %d: %w", st.plan.Variants[i].Row, err)
		}
	}
	return nil
}

func (st *commitState) applyProduct(ctx context.Context, tx *repository.CatalogRepository, op *ProductOp) error {
	brandID, err := st.ensureBrand(ctx, tx, op.Brand)
	if err != nil {
		return err
	}
	var leafID uuid.UUID
	for _, ref := range op.Categories {
		leafID, err = st.ensureCategory(ctx, tx, ref)
		if err != nil {
			return err
		}
	}
	seriesID, categoryID, err := st.ensureSeries(ctx, tx, op.Series, leafID)
	if err != nil {
		return err
	}

	switch op.Action {
	case ActionCreate:
		return st.createProduct(ctx, tx, op, brandID, seriesID, categoryID)
	case ActionUpdate, ActionSkip:
		updates := make(map[string]interface{}, len(op.Updates)+3)
		for k, v := range op.Updates {
			updates[k] = v
		}
		if op.Existing.BrandID != brandID {
			updates["brand_id"] = brandID
		}
		if op.Existing.SeriesID != seriesID {
			updates["series_id"] = seriesID
		}
		if op.Existing.CategoryID != categoryID {
			updates["category_id"] = categoryID
		}
		if len(updates) == 0 {
			st.summary.ProductsSkipped++
			return nil
		}
		updates["updated_by"] = st.createdBy
		if err := tx.UpdateProductFields(ctx, op.Existing.ID, updates); err != nil {
			return err
		}
		st.summary.ProductsUpdated++
		return nil
	}
	return fmt.Errorf("unknown action %q", op.Action)
}

// createProduct inserts the planned product, downgrading to an update or
// skip when something with that slug appeared since validation.
func (st *commitState) createProduct(ctx context.Context, tx *repository.CatalogRepository, op *ProductOp, brandID, seriesID, categoryID uuid.UUID) error {
	existing, err := tx.GetProductBySlug(ctx, op.New.Slug)
	if err != nil {
		return err
	}
	if existing == nil {
		product := op.New
		product.BrandID = brandID
		product.SeriesID = seriesID
		product.CategoryID = categoryID
		product.CreatedBy = &st.createdBy
		err = tx.CreateProduct(ctx, &product)
		if err == nil {
			st.summary.ProductsCreated++
			st.resolveCandidate(op.Target, product.ID)
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		existing, err = tx.GetProductBySlug(ctx, op.New.Slug)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("product %q vanished after duplicate insert", op.New.Slug)
		}
	}

	st.resolveCandidate(op.Target, existing.ID)
	updates := productDowngradeUpdates(existing, op, brandID, seriesID, categoryID)
	if len(updates) == 0 {
		st.summary.ProductsSkipped++
		return nil
	}
	updates["updated_by"] = st.createdBy
	if err := tx.UpdateProductFields(ctx, existing.ID, updates); err != nil {
		return err
	}
	st.summary.ProductsUpdated++
	return nil
}

func (st *commitState) applyVariant(ctx context.Context, tx *repository.CatalogRepository, op *VariantOp) error {
	productID, err := st.variantProductID(op)
	if err != nil {
		return err
	}

	switch op.Action {
	case ActionCreate:
		existing, err := tx.GetVariantByModelCode(ctx, op.New.ModelCode)
		if err != nil {
			return err
		}
		if existing == nil {
			variant := op.New
			variant.ProductID = productID
			err = tx.CreateVariant(ctx, &variant)
			if err == nil {
				st.summary.VariantsCreated++
				return nil
			}
			if !isUniqueViolation(err) {
				return err
			}
			existing, err = tx.GetVariantByModelCode(ctx, op.New.ModelCode)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("variant %q vanished after duplicate insert", op.New.ModelCode)
			}
		}
		updates := variantDowngradeUpdates(existing, op, productID)
		if len(updates) == 0 {
			st.summary.VariantsSkipped++
			return nil
		}
		if err := tx.UpdateVariantFields(ctx, existing.ID, updates); err != nil {
			return err
		}
		st.summary.VariantsUpdated++
		return nil
	case ActionUpdate, ActionSkip:
		updates := make(map[string]interface{}, len(op.Updates)+1)
		for k, v := range op.Updates {
			updates[k] = v
		}
		if op.Existing.ProductID != productID {
			updates["product_id"] = productID
		}
		if len(updates) == 0 {
			st.summary.VariantsSkipped++
			return nil
		}
		if err := tx.UpdateVariantFields(ctx, op.Existing.ID, updates); err != nil {
			return err
		}
		st.summary.VariantsUpdated++
		return nil
	}
	return fmt.Errorf("unknown action %q", op.Action)
}

// variantProductID resolves the owning product. A candidate that never got
// an id means the owning product's row failed earlier in a partial commit.
func (st *commitState) variantProductID(op *VariantOp) (uuid.UUID, error) {
	if !op.Product.IsCandidate() {
		return op.Product.ID, nil
	}
	if id, ok := st.resolved[op.Product.Candidate]; ok {
		return id, nil
	}
	pending := st.plan.Arena.Get(op.Product.Candidate)
	return uuid.Nil, fmt.Errorf("owning product %q was not created", pending.Slug)
}

func (st *commitState) ensureBrand(ctx context.Context, tx *repository.CatalogRepository, ref Ref) (uuid.UUID, error) {
	if !ref.IsCandidate() {
		return ref.ID, nil
	}
	if id, ok := st.resolved[ref.Candidate]; ok {
		return id, nil
	}
	pending := st.plan.Arena.Get(ref.Candidate)

	existing, err := tx.GetBrandBySlug(ctx, pending.Slug)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return st.matchCandidate(ref, pending, existing.ID), nil
	}

	brand := &models.Brand{Name: pending.Name, Slug: pending.Slug}
	if err := tx.CreateBrand(ctx, brand); err != nil {
		if isUniqueViolation(err) {
			if existing, err2 := tx.GetBrandBySlug(ctx, pending.Slug); err2 == nil && existing != nil {
				return st.matchCandidate(ref, pending, existing.ID), nil
			}
		}
		return uuid.Nil, err
	}
	st.summary.BrandsCreated++
	st.resolveCandidate(ref, brand.ID)
	return brand.ID, nil
}

func (st *commitState) ensureCategory(ctx context.Context, tx *repository.CatalogRepository, ref Ref) (uuid.UUID, error) {
	if !ref.IsCandidate() {
		return ref.ID, nil
	}
	if id, ok := st.resolved[ref.Candidate]; ok {
		return id, nil
	}
	pending := st.plan.Arena.Get(ref.Candidate)

	var parentID *uuid.UUID
	level := 0
	if pending.Parent != nil {
		pid, err := st.ensureCategory(ctx, tx, *pending.Parent)
		if err != nil {
			return uuid.Nil, err
		}
		parentLevel, err := st.categoryLevel(ctx, tx, pid)
		if err != nil {
			return uuid.Nil, err
		}
		parentID = &pid
		level = parentLevel + 1
	}

	existing, err := tx.GetCategoryBySlugAndParent(ctx, parentID, pending.Slug)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		st.levels[existing.ID] = existing.Level
		return st.matchCandidate(ref, pending, existing.ID), nil
	}

	category := &models.Category{
		ParentID: parentID,
		Name:     pending.Name,
		Slug:     pending.Slug,
		Level:    level,
	}
	if err := tx.CreateCategory(ctx, category); err != nil {
		if isUniqueViolation(err) {
			if existing, err2 := tx.GetCategoryBySlugAndParent(ctx, parentID, pending.Slug); err2 == nil && existing != nil {
				st.levels[existing.ID] = existing.Level
				return st.matchCandidate(ref, pending, existing.ID), nil
			}
		}
		return uuid.Nil, err
	}
	st.summary.CategoriesCreated++
	st.resolveCandidate(ref, category.ID)
	st.levels[category.ID] = level
	return category.ID, nil
}

// ensureSeries resolves or creates the series and returns its id plus the
// category id the product must denormalize. An existing series keeps its
// current category.
func (st *commitState) ensureSeries(ctx context.Context, tx *repository.CatalogRepository, ref Ref, leafCategoryID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	if !ref.IsCandidate() {
		return ref.ID, leafCategoryID, nil
	}
	if id, ok := st.resolved[ref.Candidate]; ok {
		return id, leafCategoryID, nil
	}
	pending := st.plan.Arena.Get(ref.Candidate)

	existing, err := tx.GetSeriesBySlug(ctx, pending.Slug)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if existing != nil {
		return st.matchCandidate(ref, pending, existing.ID), existing.CategoryID, nil
	}

	categoryID := leafCategoryID
	if pending.Parent != nil {
		categoryID, err = st.ensureCategory(ctx, tx, *pending.Parent)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}
	series := &models.Series{CategoryID: categoryID, Name: pending.Name, Slug: pending.Slug}
	if err := tx.CreateSeries(ctx, series); err != nil {
		if isUniqueViolation(err) {
			if existing, err2 := tx.GetSeriesBySlug(ctx, pending.Slug); err2 == nil && existing != nil {
				return st.matchCandidate(ref, pending, existing.ID), existing.CategoryID, nil
			}
		}
		return uuid.Nil, uuid.Nil, err
	}
	st.summary.SeriesCreated++
	st.resolveCandidate(ref, series.ID)
	return series.ID, categoryID, nil
}

func (st *commitState) resolveCandidate(ref Ref, id uuid.UUID) {
	if ref.IsCandidate() {
		st.resolved[ref.Candidate] = id
	}
}

// matchCandidate ties a candidate to an entity that turned out to exist
// after all, so later rows and the final report see the real id.
func (st *commitState) matchCandidate(ref Ref, pending *Pending, id uuid.UUID) uuid.UUID {
	st.resolved[ref.Candidate] = id
	matched := id
	pending.MatchedID = &matched
	return id
}

func (st *commitState) categoryLevel(ctx context.Context, tx *repository.CatalogRepository, id uuid.UUID) (int, error) {
	if level, ok := st.levels[id]; ok {
		return level, nil
	}
	category, err := tx.GetCategoryByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if category == nil {
		return 0, fmt.Errorf("category %s not found", id)
	}
	st.levels[id] = category.Level
	return category.Level, nil
}

// productDowngradeUpdates compares a planned create against the product
// that now occupies the slug, so a re-commit of the same file converges to
// a skip instead of a duplicate insert.
func productDowngradeUpdates(existing *models.Product, op *ProductOp, brandID, seriesID, categoryID uuid.UUID) map[string]interface{} {
	updates := make(map[string]interface{})
	if existing.Name != op.New.Name {
		updates["name"] = op.New.Name
	}
	diffPtr(updates, "title_tr", op.New.TitleTR, existing.TitleTR)
	diffPtr(updates, "title_en", op.New.TitleEN, existing.TitleEN)
	if existing.Status != op.New.Status {
		updates["status"] = op.New.Status
	}
	if existing.IsFeatured != op.New.IsFeatured {
		updates["is_featured"] = op.New.IsFeatured
	}
	diffPtr(updates, "long_description", op.New.LongDescription, existing.LongDescription)
	diffPtr(updates, "general_features", op.New.GeneralFeatures, existing.GeneralFeatures)
	diffPtr(updates, "short_specs", op.New.ShortSpecs, existing.ShortSpecs)
	diffPtr(updates, "taxonomy_path", op.New.TaxonomyPath, existing.TaxonomyPath)
	if existing.BrandID != brandID {
		updates["brand_id"] = brandID
	}
	if existing.SeriesID != seriesID {
		updates["series_id"] = seriesID
	}
	if existing.CategoryID != categoryID {
		updates["category_id"] = categoryID
	}
	return updates
}

func variantDowngradeUpdates(existing *models.Variant, op *VariantOp, productID uuid.UUID) map[string]interface{} {
	updates := make(map[string]interface{})
	diffPtr(updates, "name_tr", op.New.NameTR, existing.NameTR)
	diffPtr(updates, "name_en", op.New.NameEN, existing.NameEN)
	diffPtr(updates, "sku", op.New.SKU, existing.SKU)
	diffPtr(updates, "dimensions", op.New.Dimensions, existing.Dimensions)
	if op.New.Weight != nil && (existing.Weight == nil || *existing.Weight != *op.New.Weight) {
		updates["weight"] = *op.New.Weight
	}
	if op.New.ListPrice != nil && (existing.ListPrice == nil || *existing.ListPrice != *op.New.ListPrice) {
		updates["list_price"] = *op.New.ListPrice
	}
	if op.New.StockQty != nil && (existing.StockQty == nil || *existing.StockQty != *op.New.StockQty) {
		updates["stock_qty"] = *op.New.StockQty
	}
	if len(op.New.Specs) > 0 {
		if merged := overlaySpecs(existing.Specs, op.New.Specs); merged != nil {
			updates["specs"] = datatypes.JSONMap(merged)
		}
	}
	if existing.ProductID != productID {
		updates["product_id"] = productID
	}
	return updates
}

// diffPtr adds column=value when the planned value is present and differs.
// A nil planned value leaves the current one alone.
func diffPtr(updates map[string]interface{}, column string, planned, current *string) {
	if planned == nil {
		return
	}
	if current == nil || *current != *planned {
		updates[column] = *planned
	}
}

// overlaySpecs merges planned spec keys onto the existing map, returning
// nil when nothing would change
func overlaySpecs(existing, planned map[string]interface{}) map[string]interface{} {
	changed := false
	merged := make(map[string]interface{}, len(existing)+len(planned))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range planned {
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

// isUniqueViolation detects a unique index conflict across the Postgres
// driver and the sqlite test harness.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
