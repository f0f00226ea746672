package models

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplateSheet defines one sheet of the import workbook
type ImportTemplateSheet struct {
	Name    string                 `json:"name"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ImportTemplate defines the two-sheet catalog import workbook
type ImportTemplate struct {
	Entity  string                `json:"entity"`
	Version string                `json:"version"`
	Sheets  []ImportTemplateSheet `json:"sheets"`
}

// ProductSheetColumns returns the canonical Products sheet column set
func ProductSheetColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "Brand", Description: "Brand name; matched case/diacritic-insensitively, created as candidate in smart mode", Required: true, Type: "string", Example: "GastroTech"},
		{Name: "Category", Description: "Category name or slash-delimited path when hierarchy splitting is enabled", Required: true, Type: "string", Example: "Pişirme / Fırınlar / Pizza"},
		{Name: "Series", Description: "Series name within the category", Required: true, Type: "string", Example: "600 Series"},
		{Name: "Product Name", Description: "Display name of the product", Required: true, Type: "string", Example: "Gazlı Ocak"},
		{Name: "Product Slug", Description: "URL slug; derived from the name when empty", Required: false, Type: "string", Example: "gazli-ocak-600"},
		{Name: "Title (TR)", Description: "Turkish listing title", Required: false, Type: "string", Example: "Gazlı Ocak 600 Serisi"},
		{Name: "Title (EN)", Description: "English listing title", Required: false, Type: "string", Example: "Gas Range 600 Series"},
		{Name: "Status", Description: "DRAFT, ACTIVE, INACTIVE or ARCHIVED (default DRAFT)", Required: false, Type: "string", Example: "ACTIVE"},
		{Name: "Is Featured", Description: "true/false", Required: false, Type: "boolean", Example: "false"},
		{Name: "Long Description", Description: "Free-text description", Required: false, Type: "string", Example: ""},
		{Name: "General Features", Description: "Free-text feature list", Required: false, Type: "string", Example: ""},
		{Name: "Short Specs", Description: "Free-text short specification line", Required: false, Type: "string", Example: ""},
		{Name: "Taxonomy Path", Description: "Display breadcrumb stored as-is", Required: false, Type: "string", Example: "Pişirme Üniteleri > Ocaklar"},
	}
}

// VariantSheetColumns returns the canonical Variants sheet column set.
// Any additional column named "Spec:<key>" is folded into the variant's spec
// map; unknown spec keys are accepted.
func VariantSheetColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "Product Slug", Description: "Slug of the owning product (same file or existing catalog)", Required: true, Type: "string", Example: "gazli-ocak-600"},
		{Name: "Model Code", Description: "Globally unique model code", Required: true, Type: "string", Example: "GT-600-GO4"},
		{Name: "Variant Name (TR)", Description: "Turkish variant name", Required: false, Type: "string", Example: "4 Gözlü"},
		{Name: "Variant Name (EN)", Description: "English variant name", Required: false, Type: "string", Example: "4 Burners"},
		{Name: "SKU", Description: "Stock keeping unit", Required: false, Type: "string", Example: "SKU-600-GO4"},
		{Name: "Dimensions", Description: "WxDxH free text", Required: false, Type: "string", Example: "800x600x850 mm"},
		{Name: "Weight", Description: "Weight in kg", Required: false, Type: "number", Example: "52.5"},
		{Name: "List Price", Description: "List price", Required: false, Type: "number", Example: "1450.00"},
		{Name: "Stock Qty", Description: "Available stock", Required: false, Type: "number", Example: "12"},
		{Name: "Spec:Power", Description: "Example dynamic spec column; add any Spec:<key> column", Required: false, Type: "string", Example: "7.8 kW"},
	}
}

// CatalogImportTemplate returns the template definition for catalog imports
func CatalogImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "catalog",
		Version: "1.0",
		Sheets: []ImportTemplateSheet{
			{Name: SheetProducts, Columns: ProductSheetColumns()},
			{Name: SheetVariants, Columns: VariantSheetColumns()},
		},
	}
}
