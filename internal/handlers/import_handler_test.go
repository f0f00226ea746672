package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Brand{}, &models.Category{}, &models.Series{},
		&models.Product{}, &models.Variant{}, &models.ImportJob{},
	))

	snapshots, err := importer.NewFileSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)

	catalogRepo := repository.NewCatalogRepository(db, nil)
	jobsRepo := repository.NewImportJobRepository(db)
	pipeline := importer.NewPipeline(catalogRepo, jobsRepo, snapshots, log, 10<<20, time.Minute)
	committer := importer.NewCommitter(catalogRepo, jobsRepo, snapshots, log)

	importHandler := NewImportHandler(pipeline, committer, jobsRepo, 10<<20, 20, 100)
	catalogHandler := NewCatalogHandler(catalogRepo, 20, 100)

	router := gin.New()
	v1 := router.Group("/api/v1/catalog")
	v1.GET("/brands", catalogHandler.GetBrands)
	imports := v1.Group("/import")
	imports.Use(middleware.AdminAuth(""))
	imports.GET("/template", importHandler.GetImportTemplate)
	imports.POST("/validate", importHandler.ValidateImport)
	imports.GET("/jobs/:id", importHandler.GetImportJob)
	imports.POST("/jobs/:id/commit", importHandler.CommitImport)
	return router, db
}

func uploadRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import/validate", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

const sampleCSV = "Brand,Category,Series,Product Name,Product Slug,Status\n" +
	"GastroTech,Pişirme Üniteleri,600 Series,Gazlı Ocak,gazli-ocak-600,ACTIVE\n"

func TestValidateEndpointSmartMode(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, map[string]string{"mode": "smart"}, "catalog.csv", sampleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Job    models.ImportJob    `json:"job"`
			Report models.ImportReport `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.ImportStatusValidationPassed, resp.Data.Job.Status)
	assert.Equal(t, "dev-admin", resp.Data.Job.CreatedBy)
	assert.Len(t, resp.Data.Report.Candidates, 4)
	assert.Equal(t, 1, resp.Data.Report.Counts.Creates)
}

func TestValidateEndpointRejectsBadMode(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, map[string]string{"mode": "yolo"}, "catalog.csv", sampleCSV))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_MODE")
}

func TestValidateEndpointStructuralError(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, nil, "catalog.csv", "Brand,Product Name\nGastroTech,Fırın\n"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_COLUMN")
}

func TestCommitEndpointEndToEnd(t *testing.T) {
	router, db := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, map[string]string{"mode": "smart"}, "catalog.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rec.Code)

	var validateResp struct {
		Data struct {
			Job models.ImportJob `json:"job"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validateResp))
	jobID := validateResp.Data.Job.ID

	rec = httptest.NewRecorder()
	commitReq := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import/jobs/"+jobID.String()+"/commit",
		bytes.NewBufferString(`{"allowPartial":false}`))
	commitReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, commitReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var productCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	assert.EqualValues(t, 1, productCount)

	// a second commit of the same job is refused
	rec = httptest.NewRecorder()
	commitReq = httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import/jobs/"+jobID.String()+"/commit",
		bytes.NewBufferString(`{}`))
	commitReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, commitReq)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "COMMIT_REFUSED")
}

func TestCommitEndpointUnknownJob(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import/jobs/9b9e7a52-0c5a-4a51-9f1e-000000000000/commit", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateEndpointFormats(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/import/template", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Template models.ImportTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Template.Sheets, 2)
	assert.Equal(t, models.SheetProducts, resp.Template.Sheets[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/import/template?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "Brand")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/import/template?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestAdminAuthBlocksWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/guarded", middleware.AdminAuth("secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer secret")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
