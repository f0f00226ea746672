package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportKind identifies what an import job loads. Only catalog imports exist
// today; the column keeps the audit trail unambiguous if more kinds are added.
type ImportKind string

const (
	ImportKindCatalog ImportKind = "catalog_import"
)

// ImportMode controls how unresolved references are treated
type ImportMode string

const (
	// ImportModeStrict treats any unresolved reference as a hard row error
	ImportModeStrict ImportMode = "strict"
	// ImportModeSmart turns unresolved hierarchy nodes into reviewable
	// candidates that are created on commit
	ImportModeSmart ImportMode = "smart"
)

// ImportStatus represents the lifecycle state of an import job
type ImportStatus string

const (
	ImportStatusPending          ImportStatus = "pending"
	ImportStatusValidating       ImportStatus = "validating"
	ImportStatusValidationPassed ImportStatus = "validation_passed"
	ImportStatusValidationFailed ImportStatus = "validation_failed"
	ImportStatusCommitting       ImportStatus = "committing"
	ImportStatusCompleted        ImportStatus = "completed"
	ImportStatusFailed           ImportStatus = "failed"
)

// importTransitions defines the monotonic state machine. No state is ever
// revisited.
var importTransitions = map[ImportStatus][]ImportStatus{
	ImportStatusPending:          {ImportStatusValidating},
	ImportStatusValidating:       {ImportStatusValidationPassed, ImportStatusValidationFailed},
	ImportStatusValidationPassed: {ImportStatusCommitting},
	ImportStatusCommitting:       {ImportStatusCompleted, ImportStatusFailed},
}

// CanTransition reports whether moving from one import status to another is
// allowed by the state machine.
func CanTransition(from, to ImportStatus) bool {
	for _, next := range importTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is an end state.
func (s ImportStatus) IsTerminal() bool {
	switch s {
	case ImportStatusValidationFailed, ImportStatusCompleted, ImportStatusFailed:
		return true
	}
	return false
}

// IssueSeverity distinguishes blocking errors from informational warnings
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Sheet names as they appear in the uploaded workbook
const (
	SheetProducts = "Products"
	SheetVariants = "Variants"
)

// RowIssue is a per-row, per-field problem attached to the validation
// report. Issues are embedded in the job report, never persisted on their own.
type RowIssue struct {
	Severity IssueSeverity `json:"severity"`
	Row      int           `json:"row"`
	Sheet    string        `json:"sheet"`
	Field    string        `json:"field,omitempty"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
}

// CandidateType enumerates entity types a candidate can propose
type CandidateType string

const (
	CandidateBrand    CandidateType = "brand"
	CandidateCategory CandidateType = "category"
	CandidateSeries   CandidateType = "series"
	CandidateProduct  CandidateType = "product"
)

// Candidate is an entity proposed by validate but not yet persisted. Parent
// scope is either an existing node id or the slug of an earlier candidate in
// the same report. Matched marks a false candidate that late resolution tied
// back to an existing entity; it must be reconciled before commit.
type Candidate struct {
	EntityType CandidateType `json:"entityType"`
	Name       string        `json:"name"`
	Slug       string        `json:"slug"`
	ParentID   *uuid.UUID    `json:"parentId,omitempty"`
	ParentSlug string        `json:"parentSlug,omitempty"`
	Matched    bool          `json:"matched"`
	MatchedID  *uuid.UUID    `json:"matchedId,omitempty"`
}

// ReportCounts aggregates per-row outcomes
type ReportCounts struct {
	TotalRows int `json:"totalRows"`
	Creates   int `json:"creates"`
	Updates   int `json:"updates"`
	Skips     int `json:"skips"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
}

// ImportReport is the structured validate output stored on the job. After a
// commit the Commit section is filled in on the same report.
type ImportReport struct {
	Issues     []RowIssue     `json:"issues"`
	Candidates []Candidate    `json:"candidates"`
	Counts     ReportCounts   `json:"counts"`
	Commit     *CommitSummary `json:"commit,omitempty"`
}

// CommitSummary is the structured commit output with per-entity-type counts
type CommitSummary struct {
	BrandsCreated     int        `json:"brandsCreated"`
	CategoriesCreated int        `json:"categoriesCreated"`
	SeriesCreated     int        `json:"seriesCreated"`
	ProductsCreated   int        `json:"productsCreated"`
	ProductsUpdated   int        `json:"productsUpdated"`
	ProductsSkipped   int        `json:"productsSkipped"`
	VariantsCreated   int        `json:"variantsCreated"`
	VariantsUpdated   int        `json:"variantsUpdated"`
	VariantsSkipped   int        `json:"variantsSkipped"`
	Errors            []RowIssue `json:"errors,omitempty"`
}

// ImportJob is the audit record of one upload-and-resolve cycle. It is
// created at validate time, driven through the state machine by the import
// pipeline, and retained indefinitely. Once SnapshotHash is set it is
// immutable; commit re-hashes the snapshot and refuses to run on a mismatch.
type ImportJob struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	Kind      ImportKind   `json:"kind" gorm:"not null;default:'catalog_import'"`
	Mode      ImportMode   `json:"mode" gorm:"not null"`
	Status    ImportStatus `json:"status" gorm:"not null;default:'pending';index"`
	CreatedBy string       `json:"createdBy" gorm:"not null"`

	FileName     string `json:"fileName" gorm:"not null"`
	FileHash     string `json:"fileHash" gorm:"not null"`
	SnapshotRef  string `json:"snapshotRef" gorm:"not null"`
	SnapshotHash string `json:"snapshotHash" gorm:"not null;index"`

	IsPreview                    bool `json:"isPreview" gorm:"not null;default:true"`
	AllowPartial                 bool `json:"allowPartial" gorm:"not null;default:false"`
	TreatSlashAsHierarchy        bool `json:"treatSlashAsHierarchy" gorm:"not null;default:true"`
	AllowCreateMissingCategories bool `json:"allowCreateMissingCategories" gorm:"not null;default:true"`

	Report datatypes.JSON `json:"report,omitempty" gorm:"type:jsonb"`

	TotalRows    int `json:"totalRows" gorm:"not null;default:0"`
	CreatedCount int `json:"createdCount" gorm:"not null;default:0"`
	UpdatedCount int `json:"updatedCount" gorm:"not null;default:0"`
	SkippedCount int `json:"skippedCount" gorm:"not null;default:0"`
	ErrorCount   int `json:"errorCount" gorm:"not null;default:0"`
	WarningCount int `json:"warningCount" gorm:"not null;default:0"`

	// JobError records a job-level (not row-level) failure such as a
	// snapshot hash mismatch or a validate timeout
	JobError *string `json:"jobError,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (ImportJob) TableName() string { return "import_jobs" }

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// SetReport marshals the structured report into the JSONB column and keeps
// the aggregate counters in sync with it.
func (j *ImportJob) SetReport(report *ImportReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal import report: %w", err)
	}
	j.Report = datatypes.JSON(data)
	j.TotalRows = report.Counts.TotalRows
	j.ErrorCount = report.Counts.Errors
	j.WarningCount = report.Counts.Warnings
	return nil
}

// GetReport unmarshals the stored report. A job that failed before
// validation completed has none.
func (j *ImportJob) GetReport() (*ImportReport, error) {
	if len(j.Report) == 0 {
		return nil, nil
	}
	var report ImportReport
	if err := json.Unmarshal(j.Report, &report); err != nil {
		return nil, fmt.Errorf("unmarshal import report: %w", err)
	}
	return &report, nil
}
