package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-service/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Brand{}, &models.Category{}, &models.Series{},
		&models.Product{}, &models.Variant{}, &models.ImportJob{},
	))
	return db
}

func newTestJob(t *testing.T, repo *ImportJobRepository) *models.ImportJob {
	t.Helper()
	job := &models.ImportJob{
		Kind:         models.ImportKindCatalog,
		Mode:         models.ImportModeSmart,
		Status:       models.ImportStatusPending,
		CreatedBy:    "test-admin",
		FileName:     "catalog.xlsx",
		FileHash:     "abc",
		SnapshotRef:  "abc",
		SnapshotHash: "abc",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestImportJobTransitionHappyPath(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	ctx := context.Background()
	job := newTestJob(t, repo)

	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidating))
	assert.NotNil(t, job.StartedAt)
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidationPassed))
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusCommitting))
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusCompleted))
	assert.NotNil(t, job.CompletedAt)

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestImportJobTransitionRejectsSkips(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	ctx := context.Background()
	job := newTestJob(t, repo)

	err := repo.Transition(ctx, job, models.ImportStatusCommitting)
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, getErr := repo.GetByID(ctx, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ImportStatusPending, stored.Status, "rejected transition must not persist")
}

func TestImportJobTransitionIsMonotonic(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	ctx := context.Background()
	job := newTestJob(t, repo)

	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidating))
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidationFailed))

	err := repo.Transition(ctx, job, models.ImportStatusValidating)
	require.ErrorIs(t, err, ErrInvalidTransition, "terminal states accept no further transitions")
}

func TestImportJobTransitionConcurrencyGuard(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	ctx := context.Background()
	job := newTestJob(t, repo)

	// another worker already moved the job on in the database
	stale := *job
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidating))

	err := repo.Transition(ctx, &stale, models.ImportStatusValidating)
	require.ErrorIs(t, err, ErrStaleJob)
}

func TestImportJobGetByIDNotFound(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestImportJobSaveDoesNotTouchStatus(t *testing.T) {
	repo := NewImportJobRepository(newTestDB(t))
	ctx := context.Background()
	job := newTestJob(t, repo)
	require.NoError(t, repo.Transition(ctx, job, models.ImportStatusValidating))

	msg := "deadline exceeded"
	job.JobError = &msg
	job.ErrorCount = 3
	job.Status = models.ImportStatusCompleted // must be ignored by Save
	require.NoError(t, repo.Save(ctx, job))

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusValidating, stored.Status)
	assert.Equal(t, 3, stored.ErrorCount)
	require.NotNil(t, stored.JobError)
	assert.Equal(t, msg, *stored.JobError)
}
