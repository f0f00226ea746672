package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// ErrFileTooLarge is returned before any parsing when the upload exceeds
// the configured size cap
var ErrFileTooLarge = errors.New("upload exceeds the maximum file size")

// Pipeline runs the validate phase: parse, snapshot, reconcile, report.
// Validate is side-effect free against the catalog; the only writes are the
// snapshot blob and the job's own audit record.
type Pipeline struct {
	catalog   *repository.CatalogRepository
	jobs      *repository.ImportJobRepository
	snapshots SnapshotStore
	log       *logrus.Logger

	maxUploadBytes  int64
	validateTimeout time.Duration
}

func NewPipeline(catalog *repository.CatalogRepository, jobs *repository.ImportJobRepository, snapshots SnapshotStore, log *logrus.Logger, maxUploadBytes int64, validateTimeout time.Duration) *Pipeline {
	return &Pipeline{
		catalog:         catalog,
		jobs:            jobs,
		snapshots:       snapshots,
		log:             log,
		maxUploadBytes:  maxUploadBytes,
		validateTimeout: validateTimeout,
	}
}

// ValidateRequest carries one upload and the policy fixed for the job's
// whole lifecycle. Commit later replays the snapshot with these options.
type ValidateRequest struct {
	FileName                     string
	Data                         []byte
	Mode                         models.ImportMode
	TreatSlashAsHierarchy        bool
	AllowCreateMissingCategories bool
	CreatedBy                    string
}

// ValidateResult is the job record plus its freshly built report
type ValidateResult struct {
	Job    *models.ImportJob
	Report *models.ImportReport
}

// Validate parses the upload, snapshots it, reconciles every row against
// current catalog state and stores the report on a new job. Structural
// problems (unreadable file, missing sheet or column) abort before a job is
// created; row problems land in the report and the job still reaches
// validation_passed.
func (p *Pipeline) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	if p.maxUploadBytes > 0 && int64(len(req.Data)) > p.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(req.Data))
	}

	wb, err := ParseUpload(req.Data, req.FileName)
	if err != nil {
		return nil, err
	}

	ref, hash, err := p.snapshots.Put(req.Data)
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	job := &models.ImportJob{
		Kind:                         models.ImportKindCatalog,
		Mode:                         req.Mode,
		Status:                       models.ImportStatusPending,
		CreatedBy:                    req.CreatedBy,
		FileName:                     req.FileName,
		FileHash:                     HashBytes(req.Data),
		SnapshotRef:                  ref,
		SnapshotHash:                 hash,
		IsPreview:                    true,
		TreatSlashAsHierarchy:        req.TreatSlashAsHierarchy,
		AllowCreateMissingCategories: req.AllowCreateMissingCategories,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := p.jobs.Transition(ctx, job, models.ImportStatusValidating); err != nil {
		return nil, err
	}

	log := p.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"file_name": req.FileName,
		"mode":      req.Mode,
		"rows":      len(wb.Products) + len(wb.Variants),
	})
	log.Info("Starting catalog import validation")

	scanCtx, cancel := context.WithTimeout(ctx, p.validateTimeout)
	defer cancel()

	plan, err := BuildPlan(scanCtx, p.catalog, wb, Options{
		Mode:                         req.Mode,
		TreatSlashAsHierarchy:        req.TreatSlashAsHierarchy,
		AllowCreateMissingCategories: req.AllowCreateMissingCategories,
	})
	if err != nil {
		return nil, p.failValidation(ctx, job, err)
	}

	report := &models.ImportReport{
		Issues:     plan.Issues,
		Candidates: plan.Candidates(),
		Counts:     plan.Counts(len(wb.Products) + len(wb.Variants)),
	}
	if report.Issues == nil {
		report.Issues = []models.RowIssue{}
	}
	if report.Candidates == nil {
		report.Candidates = []models.Candidate{}
	}
	if err := job.SetReport(report); err != nil {
		return nil, p.failValidation(ctx, job, err)
	}
	if err := p.jobs.Save(ctx, job); err != nil {
		return nil, p.failValidation(ctx, job, err)
	}
	if err := p.jobs.Transition(ctx, job, models.ImportStatusValidationPassed); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"creates":    report.Counts.Creates,
		"updates":    report.Counts.Updates,
		"skips":      report.Counts.Skips,
		"errors":     report.Counts.Errors,
		"warnings":   report.Counts.Warnings,
		"candidates": len(report.Candidates),
	}).Info("Catalog import validation finished")

	return &ValidateResult{Job: job, Report: report}, nil
}

// failValidation records a job-level failure such as a scan timeout. Row
// errors never come through here.
func (p *Pipeline) failValidation(ctx context.Context, job *models.ImportJob, cause error) error {
	msg := cause.Error()
	job.JobError = &msg
	if err := p.jobs.Save(ctx, job); err != nil {
		p.log.WithError(err).WithField("job_id", job.ID).Error("Failed to record validation failure")
	}
	if err := p.jobs.Transition(ctx, job, models.ImportStatusValidationFailed); err != nil {
		p.log.WithError(err).WithField("job_id", job.ID).Error("Failed to fail validation job")
	}
	p.log.WithError(cause).WithField("job_id", job.ID).Error("Catalog import validation failed")
	return cause
}
