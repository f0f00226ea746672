package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// Cache TTL constants
const (
	BrandListCacheTTL    = 30 * time.Minute // Brands rarely change
	CategoryListCacheTTL = 30 * time.Minute // Categories rarely change
	ProductListCacheTTL  = 2 * time.Minute  // Product lists change with every import

	brandListCacheKey    = "catalog:brands:all"
	categoryListCacheKey = "catalog:categories:all"
)

// CatalogRepository is the data access layer for the catalog hierarchy.
// List* methods feed the import resolver and must always reflect committed
// database state, so only the read-side handler queries go through Redis.
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	return &CatalogRepository{db: db, redis: redis}
}

// WithTransaction runs fn against a repository bound to one transaction.
// Rolls back when fn returns an error.
func (r *CatalogRepository) WithTransaction(fn func(tx *CatalogRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogRepository{db: tx, redis: r.redis})
	})
}

// Full-table listings for the import resolver. The catalog is a few
// thousand rows at most, so one pass per job is cheaper than per-row
// queries.

func (r *CatalogRepository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := r.db.WithContext(ctx).Order("slug").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("level, position, slug").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CatalogRepository) ListSeries(ctx context.Context) ([]models.Series, error) {
	var series []models.Series
	if err := r.db.WithContext(ctx).Order("slug").Find(&series).Error; err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return series, nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("slug").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *CatalogRepository) ListVariants(ctx context.Context) ([]models.Variant, error) {
	var variants []models.Variant
	if err := r.db.WithContext(ctx).Order("model_code").Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return variants, nil
}

// Point lookups, used by the committer's pre-insert re-checks

func (r *CatalogRepository) GetBrandBySlug(ctx context.Context, slug string) (*models.Brand, error) {
	var brand models.Brand
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&brand).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand by slug: %w", err)
	}
	return &brand, nil
}

func (r *CatalogRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return &category, nil
}

// GetCategoryBySlugAndParent looks a category up within its parent scope;
// a nil parent means the root level.
func (r *CatalogRepository) GetCategoryBySlugAndParent(ctx context.Context, parentID *uuid.UUID, slug string) (*models.Category, error) {
	query := r.db.WithContext(ctx).Where("slug = ?", slug)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	var category models.Category
	err := query.First(&category).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	return &category, nil
}

func (r *CatalogRepository) GetSeriesBySlug(ctx context.Context, slug string) (*models.Series, error) {
	var series models.Series
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&series).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series by slug: %w", err)
	}
	return &series, nil
}

func (r *CatalogRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return &product, nil
}

func (r *CatalogRepository) GetProductByID(ctx context.Context, id uuid.UUID, includeVariants bool) (*models.Product, error) {
	query := r.db.WithContext(ctx)
	if includeVariants {
		query = query.Preload("Variants")
	}
	var product models.Product
	err := query.Where("id = ?", id).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return &product, nil
}

func (r *CatalogRepository) GetVariantByModelCode(ctx context.Context, code string) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).Where("model_code = ?", code).First(&variant).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant by model code: %w", err)
	}
	return &variant, nil
}

// Writes

func (r *CatalogRepository) CreateBrand(ctx context.Context, brand *models.Brand) error {
	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		return fmt.Errorf("create brand: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateSeries(ctx context.Context, series *models.Series) error {
	if err := r.db.WithContext(ctx).Create(series).Error; err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, variant *models.Variant) error {
	if err := r.db.WithContext(ctx).Create(variant).Error; err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

// UpdateProductFields applies only the given columns, leaving everything
// else untouched.
func (r *CatalogRepository) UpdateProductFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update product: %s not found", id)
	}
	return nil
}

func (r *CatalogRepository) UpdateVariantFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.Variant{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update variant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update variant: %s not found", id)
	}
	return nil
}

// Cached read-side queries for the public catalog handlers

// GetBrands returns all brands, served from Redis when available.
func (r *CatalogRepository) GetBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if r.cacheGet(ctx, brandListCacheKey, &brands) {
		return brands, nil
	}
	brands, err := r.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, brandListCacheKey, brands, BrandListCacheTTL)
	return brands, nil
}

// GetCategories returns the full category tree flattened in level order,
// served from Redis when available.
func (r *CatalogRepository) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if r.cacheGet(ctx, categoryListCacheKey, &categories) {
		return categories, nil
	}
	categories, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, categoryListCacheKey, categories, CategoryListCacheTTL)
	return categories, nil
}

// GetProducts returns one page of products with a total count.
func (r *CatalogRepository) GetProducts(ctx context.Context, page, limit int) ([]models.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	var products []models.Product
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Order("slug").
		Offset(offset).Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list products page: %w", err)
	}
	return products, total, nil
}

// GetSeriesByCategory returns the series owned by one category.
func (r *CatalogRepository) GetSeriesByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Series, error) {
	var series []models.Series
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("slug").Find(&series).Error
	if err != nil {
		return nil, fmt.Errorf("list series by category: %w", err)
	}
	return series, nil
}

// InvalidateCatalogCaches drops the cached catalog listings. Called after
// every successful commit.
func (r *CatalogRepository) InvalidateCatalogCaches(ctx context.Context) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, brandListCacheKey, categoryListCacheKey).Err()
}

func (r *CatalogRepository) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if r.redis == nil {
		return false
	}
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (r *CatalogRepository) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.redis.Set(ctx, key, data, ttl).Err()
}
