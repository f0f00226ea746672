package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/importer"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

type ImportHandler struct {
	pipeline  *importer.Pipeline
	committer *importer.Committer
	jobs      *repository.ImportJobRepository

	maxUploadBytes  int64
	defaultPageSize int
	maxPageSize     int
}

func NewImportHandler(pipeline *importer.Pipeline, committer *importer.Committer, jobs *repository.ImportJobRepository, maxUploadBytes int64, defaultPageSize, maxPageSize int) *ImportHandler {
	return &ImportHandler{
		pipeline:        pipeline,
		committer:       committer,
		jobs:            jobs,
		maxUploadBytes:  maxUploadBytes,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// ValidateImport accepts a catalog spreadsheet, runs the side-effect-free
// validation pass and returns the job with its report
// POST /api/v1/catalog/import/validate
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "multipart field \"file\" is required")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_UNREADABLE", "could not open the uploaded file")
		return
	}
	defer file.Close()
	reader := io.Reader(file)
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_UNREADABLE", "could not read the uploaded file")
		return
	}
	if h.maxUploadBytes > 0 && int64(len(data)) > h.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadBytes))
		return
	}

	mode := models.ImportMode(c.DefaultPostForm("mode", string(models.ImportModeStrict)))
	if mode != models.ImportModeStrict && mode != models.ImportModeSmart {
		respondError(c, http.StatusBadRequest, "INVALID_MODE", "mode must be \"strict\" or \"smart\"")
		return
	}

	req := importer.ValidateRequest{
		FileName:                     fileHeader.Filename,
		Data:                         data,
		Mode:                         mode,
		TreatSlashAsHierarchy:        formBool(c, "treat_slash_as_hierarchy", true),
		AllowCreateMissingCategories: formBool(c, "allow_create_missing_categories", true),
		CreatedBy:                    c.GetString("user_id"),
	}

	result, err := h.pipeline.Validate(c.Request.Context(), req)
	if err != nil {
		var structural *importer.StructuralError
		switch {
		case errors.As(err, &structural):
			respondError(c, http.StatusBadRequest, structural.Code, structural.Message)
		case errors.Is(err, importer.ErrFileTooLarge):
			respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "VALIDATION_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"job":    result.Job,
			"report": result.Report,
		},
	})
}

// CommitImport applies a validated job to the catalog
// POST /api/v1/catalog/import/jobs/:id/commit
func (h *ImportHandler) CommitImport(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JOB_ID", "job id must be a UUID")
		return
	}

	var body struct {
		AllowPartial                 bool  `json:"allowPartial"`
		TreatSlashAsHierarchy        *bool `json:"treatSlashAsHierarchy"`
		AllowCreateMissingCategories *bool `json:"allowCreateMissingCategories"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	job, summary, err := h.committer.Commit(c.Request.Context(), importer.CommitRequest{
		JobID:                        jobID,
		AllowPartial:                 body.AllowPartial,
		TreatSlashAsHierarchy:        body.TreatSlashAsHierarchy,
		AllowCreateMissingCategories: body.AllowCreateMissingCategories,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			respondError(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
		case errors.Is(err, importer.ErrJobTerminal),
			errors.Is(err, importer.ErrJobNotCommittable),
			errors.Is(err, importer.ErrFlagMismatch),
			errors.Is(err, importer.ErrSnapshotMismatch),
			errors.Is(err, repository.ErrStaleJob):
			respondError(c, http.StatusConflict, "COMMIT_REFUSED", err.Error())
		case errors.Is(err, importer.ErrReportHasErrors):
			respondError(c, http.StatusUnprocessableEntity, "REPORT_HAS_ERRORS", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "COMMIT_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"job":     job,
			"summary": summary,
		},
	})
}

// GetImportJob returns one job with its parsed report
// GET /api/v1/catalog/import/jobs/:id
func (h *ImportHandler) GetImportJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JOB_ID", "job id must be a UUID")
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		respondError(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "JOB_LOOKUP_FAILED", err.Error())
		return
	}

	report, err := job.GetReport()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "REPORT_UNREADABLE", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"job":    job,
			"report": report,
		},
	})
}

// ListImportJobs returns the job audit trail, newest first
// GET /api/v1/catalog/import/jobs
func (h *ImportHandler) ListImportJobs(c *gin.Context) {
	page, limit := h.pagination(c)
	jobs, total, err := h.jobs.List(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "JOB_LIST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    jobs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/catalog/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.CatalogImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate downloads the Products sheet headers only; CSV
// uploads carry no Variants sheet
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Sheets[0].Columns))
	for i, col := range template.Sheets[0].Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate downloads a two-sheet Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	// Style for header row
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Style for required columns
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for si, sheet := range template.Sheets {
		if si == 0 {
			f.SetSheetName("Sheet1", sheet.Name)
		} else {
			f.NewSheet(sheet.Name)
		}
		for i, col := range sheet.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			headerText := col.Name
			if col.Required {
				headerText = col.Name + " *"
			}
			f.SetCellValue(sheet.Name, cell, headerText)

			if col.Required {
				f.SetCellStyle(sheet.Name, cell, cell, requiredStyle)
			} else {
				f.SetCellStyle(sheet.Name, cell, cell, headerStyle)
			}

			colName, _ := excelize.ColumnNumberToName(i + 1)
			f.SetColWidth(sheet.Name, colName, colName, 20)
		}
	}

	// Add Instructions sheet
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Catalog Import Instructions")

	f.SetCellValue("Instructions", "A3", "TWO-PHASE IMPORT:")
	f.SetCellValue("Instructions", "A4", "1. Upload to /catalog/import/validate to get a dry-run report. Nothing is written to the catalog.")
	f.SetCellValue("Instructions", "A5", "2. Commit the returned job id to apply the exact validated file.")

	f.SetCellValue("Instructions", "A7", "SMART MODE:")
	f.SetCellValue("Instructions", "A8", "Brands, categories and series that do not exist yet become candidates and are created on commit.")
	f.SetCellValue("Instructions", "A9", "Names are matched ignoring case, spacing and Turkish diacritics: \"Pişirme\" and \"pisirme\" are the same.")
	f.SetCellValue("Instructions", "A10", "Use \"Parent / Child / Grandchild\" in the Category column to address a path in the category tree.")

	f.SetCellValue("Instructions", "A12", "VARIANTS:")
	f.SetCellValue("Instructions", "A13", "Variant rows reference their product by slug; the product may come from the same file.")
	f.SetCellValue("Instructions", "A14", "Add any number of \"Spec:<key>\" columns for technical specifications.")

	row := 16
	for _, sheet := range template.Sheets {
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), sheet.Name+" columns:")
		row++
		for _, col := range sheet.Columns {
			f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
			f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
			f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), col.Type)
			f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Example)
			row++
		}
		row++
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		respondError(c, http.StatusInternalServerError, "TEMPLATE_GENERATION_FAILED", err.Error())
	}
}

func (h *ImportHandler) pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultPageSize)))
	if limit < 1 {
		limit = h.defaultPageSize
	}
	if limit > h.maxPageSize {
		limit = h.maxPageSize
	}
	return page, limit
}

func formBool(c *gin.Context, field string, fallback bool) bool {
	raw := c.PostForm(field)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: code, Message: message},
	})
}
