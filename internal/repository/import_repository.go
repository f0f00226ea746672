package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

var (
	// ErrJobNotFound is returned when no job exists for the given id
	ErrJobNotFound = errors.New("import job not found")
	// ErrInvalidTransition is returned when a status change would violate
	// the job state machine
	ErrInvalidTransition = errors.New("invalid import job transition")
	// ErrStaleJob is returned when another worker moved the job first
	ErrStaleJob = errors.New("import job was updated concurrently")
)

// ImportJobRepository persists import jobs and is the only place job status
// ever changes. Transition enforces the monotonic state machine with an
// optimistic guard so two concurrent commits cannot both enter committing.
type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return &job, nil
}

// List returns one page of jobs, newest first.
func (r *ImportJobRepository) List(ctx context.Context, page, limit int) ([]models.ImportJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ImportJob{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}
	var jobs []models.ImportJob
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list import jobs: %w", err)
	}
	return jobs, total, nil
}

// Save persists the job's report, counters and error fields. Status is
// deliberately excluded; use Transition for that.
func (r *ImportJobRepository) Save(ctx context.Context, job *models.ImportJob) error {
	err := r.db.WithContext(ctx).Model(job).
		Select("report", "total_rows", "created_count", "updated_count",
			"skipped_count", "error_count", "warning_count",
			"is_preview", "allow_partial", "job_error").
		Updates(job).Error
	if err != nil {
		return fmt.Errorf("save import job: %w", err)
	}
	return nil
}

// Transition moves the job to the next status, enforcing the state machine
// and guarding against a concurrent transition with a conditional update.
func (r *ImportJobRepository) Transition(ctx context.Context, job *models.ImportJob, to models.ImportStatus) error {
	from := job.Status
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": to, "updated_at": now}
	switch {
	case to == models.ImportStatusValidating:
		updates["started_at"] = now
	case to.IsTerminal():
		updates["completed_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("transition import job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: expected status %s", ErrStaleJob, from)
	}

	job.Status = to
	switch {
	case to == models.ImportStatusValidating:
		job.StartedAt = &now
	case to.IsTerminal():
		job.CompletedAt = &now
	}
	return nil
}
