package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProductStatus represents the publication status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// Brand represents a manufacturer brand (e.g. "GastroTech")
type Brand struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	Name      string          `json:"name" gorm:"not null"`
	Slug      string          `json:"slug" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Category represents one node of the category tree.
// Slug is unique within its parent, not globally.
type Category struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	ParentID  *uuid.UUID      `json:"parentId,omitempty" gorm:"column:parent_id;index;index:idx_categories_parent_slug,unique"`
	Name      string          `json:"name" gorm:"not null"`
	Slug      string          `json:"slug" gorm:"not null;index:idx_categories_parent_slug,unique"`
	Level     int             `json:"level" gorm:"not null;default:0"`
	Position  int             `json:"position" gorm:"not null;default:1"`
	IsActive  *bool           `json:"isActive" gorm:"column:is_active;default:true"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Series represents a product series/line belonging to exactly one category
// (e.g. "600 Series"). Series slugs are globally unique.
type Series struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	CategoryID uuid.UUID       `json:"categoryId" gorm:"type:uuid;not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	Slug       string          `json:"slug" gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DeletedAt  *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Product represents a catalog product. CategoryID is denormalized from the
// owning series and must always equal series.category_id.
type Product struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	BrandID         uuid.UUID       `json:"brandId" gorm:"type:uuid;not null;index"`
	SeriesID        uuid.UUID       `json:"seriesId" gorm:"type:uuid;not null;index"`
	CategoryID      uuid.UUID       `json:"categoryId" gorm:"type:uuid;not null;index"`
	Name            string          `json:"name" gorm:"not null"`
	Slug            string          `json:"slug" gorm:"not null;uniqueIndex"`
	TitleTR         *string         `json:"titleTr,omitempty" gorm:"column:title_tr"`
	TitleEN         *string         `json:"titleEn,omitempty" gorm:"column:title_en"`
	Status          ProductStatus   `json:"status" gorm:"not null;default:'DRAFT'"`
	IsFeatured      bool            `json:"isFeatured" gorm:"not null;default:false"`
	LongDescription *string         `json:"longDescription,omitempty" gorm:"type:text"`
	GeneralFeatures *string         `json:"generalFeatures,omitempty" gorm:"type:text"`
	ShortSpecs      *string         `json:"shortSpecs,omitempty" gorm:"type:text"`
	TaxonomyPath    *string         `json:"taxonomyPath,omitempty"`
	Variants        []*Variant      `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy       *string         `json:"createdBy,omitempty"`
	UpdatedBy       *string         `json:"updatedBy,omitempty"`
}

// Variant represents a concrete orderable model of a product. Model codes
// are globally unique and never empty.
type Variant struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	ProductID  uuid.UUID         `json:"productId" gorm:"type:uuid;not null;index"`
	ModelCode  string            `json:"modelCode" gorm:"column:model_code;not null;uniqueIndex"`
	NameTR     *string           `json:"nameTr,omitempty" gorm:"column:name_tr"`
	NameEN     *string           `json:"nameEn,omitempty" gorm:"column:name_en"`
	SKU        *string           `json:"sku,omitempty"`
	Dimensions *string           `json:"dimensions,omitempty"`
	Weight     *float64          `json:"weight,omitempty"`
	ListPrice  *float64          `json:"listPrice,omitempty" gorm:"column:list_price"`
	StockQty   *int              `json:"stockQty,omitempty" gorm:"column:stock_qty"`
	Specs      datatypes.JSONMap `json:"specs,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	DeletedAt  *gorm.DeletedAt   `json:"deletedAt,omitempty" gorm:"index"`
}

func (Brand) TableName() string    { return "brands" }
func (Category) TableName() string { return "categories" }
func (Series) TableName() string   { return "series" }
func (Product) TableName() string  { return "products" }
func (Variant) TableName() string  { return "variants" }

// BeforeCreate assigns IDs in application code so the same models work
// against Postgres and the sqlite test harness.
func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (s *Series) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (v *Variant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
