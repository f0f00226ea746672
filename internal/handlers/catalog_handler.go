package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// CatalogHandler serves the read side of the catalog hierarchy
type CatalogHandler struct {
	repo *repository.CatalogRepository

	defaultPageSize int
	maxPageSize     int
}

func NewCatalogHandler(repo *repository.CatalogRepository, defaultPageSize, maxPageSize int) *CatalogHandler {
	return &CatalogHandler{repo: repo, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

// GetBrands returns all brands
// GET /api/v1/catalog/brands
func (h *CatalogHandler) GetBrands(c *gin.Context) {
	brands, err := h.repo.GetBrands(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "BRANDS_LOOKUP_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: brands})
}

// GetCategories returns the category tree flattened in level order
// GET /api/v1/catalog/categories
func (h *CatalogHandler) GetCategories(c *gin.Context) {
	categories, err := h.repo.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "CATEGORIES_LOOKUP_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: categories})
}

// GetSeries returns the series of one category
// GET /api/v1/catalog/categories/:id/series
func (h *CatalogHandler) GetSeries(c *gin.Context) {
	categoryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CATEGORY_ID", "category id must be a UUID")
		return
	}
	series, err := h.repo.GetSeriesByCategory(c.Request.Context(), categoryID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "SERIES_LOOKUP_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: series})
}

// GetProducts returns one page of products with their variants
// GET /api/v1/catalog/products
func (h *CatalogHandler) GetProducts(c *gin.Context) {
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

	products, total, err := h.repo.GetProducts(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "PRODUCTS_LOOKUP_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetProduct returns one product with its variants
// GET /api/v1/catalog/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PRODUCT_ID", "product id must be a UUID")
		return
	}
	product, err := h.repo.GetProductByID(c.Request.Context(), id, true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "PRODUCT_LOOKUP_FAILED", err.Error())
		return
	}
	if product == nil {
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product does not exist")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: product})
}
