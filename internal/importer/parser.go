package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalog-service/internal/models"
)

// specColumnPrefix marks dynamic per-variant spec columns, e.g. "Spec:Power"
const specColumnPrefix = "spec:"

// ProductRow is one typed row of the Products sheet. Values are kept as the
// cell strings; typed parsing and validation happen in the reconciler so one
// bad cell never aborts the scan.
type ProductRow struct {
	Line            int // 1-based row number in the sheet, header included
	Brand           string
	CategoryPath    string
	Series          string
	Name            string
	Slug            string
	TitleTR         string
	TitleEN         string
	Status          string
	IsFeatured      string
	LongDescription string
	GeneralFeatures string
	ShortSpecs      string
	TaxonomyPath    string
}

// VariantRow is one typed row of the Variants sheet
type VariantRow struct {
	Line        int
	ProductSlug string
	ModelCode   string
	NameTR      string
	NameEN      string
	SKU         string
	Dimensions  string
	Weight      string
	ListPrice   string
	StockQty    string
	Specs       map[string]string
}

// Workbook is the parsed upload: the Products sheet plus an optional
// Variants sheet.
type Workbook struct {
	Products []ProductRow
	Variants []VariantRow
}

// StructuralError aborts validate before any row is processed: a missing
// sheet, a missing required column, or an unreadable file.
type StructuralError struct {
	Code    string
	Message string
}

func (e *StructuralError) Error() string { return e.Message }

func structuralErr(code, format string, args ...interface{}) *StructuralError {
	return &StructuralError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// requiredProductColumns must exist on the Products sheet header
var requiredProductColumns = []string{"brand", "category", "series", "product name"}

// requiredVariantColumns must exist on the Variants sheet header when the
// sheet is present
var requiredVariantColumns = []string{"product slug", "model code"}

// ParseUpload parses an uploaded spreadsheet into typed rows. CSV files
// carry the Products sheet only (a CSV file has a single logical sheet);
// variants require the xlsx workbook. Legacy .xls uploads are accepted at
// the boundary but only parse when the payload is actually OOXML.
func ParseUpload(data []byte, filename string) (*Workbook, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return parseCSV(data)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return parseXLSX(data)
	default:
		return nil, structuralErr("UNSUPPORTED_FORMAT", "unsupported file type %q: only .xlsx, .xls and .csv are accepted", filename)
	}
}

func parseCSV(data []byte) (*Workbook, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, structuralErr("PARSE_ERROR", "failed to read CSV header: %v", err)
	}
	headers := normalizeHeaders(header)
	if missing := missingColumns(headers, requiredProductColumns); len(missing) > 0 {
		return nil, structuralErr("MISSING_COLUMN", "Products sheet is missing required column(s): %s", strings.Join(missing, ", "))
	}

	wb := &Workbook{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, structuralErr("PARSE_ERROR", "error reading CSV line %d: %v", line+1, err)
		}
		line++
		cells := recordToMap(headers, record)
		if emptyRow(cells) {
			continue
		}
		wb.Products = append(wb.Products, productRowFromCells(line, cells))
	}
	return wb, nil
}

func parseXLSX(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, structuralErr("PARSE_ERROR", "failed to open spreadsheet: %v", err)
	}
	defer f.Close()

	productsSheet := findSheet(f, models.SheetProducts)
	if productsSheet == "" {
		return nil, structuralErr("MISSING_SHEET", "workbook has no %q sheet", models.SheetProducts)
	}

	wb := &Workbook{}

	productRows, err := f.GetRows(productsSheet)
	if err != nil {
		return nil, structuralErr("PARSE_ERROR", "failed to read sheet %q: %v", productsSheet, err)
	}
	if len(productRows) == 0 {
		return nil, structuralErr("MISSING_COLUMN", "Products sheet has no header row")
	}
	headers := normalizeHeaders(productRows[0])
	if missing := missingColumns(headers, requiredProductColumns); len(missing) > 0 {
		return nil, structuralErr("MISSING_COLUMN", "Products sheet is missing required column(s): %s", strings.Join(missing, ", "))
	}
	for i, row := range productRows[1:] {
		cells := recordToMap(headers, row)
		if emptyRow(cells) {
			continue
		}
		wb.Products = append(wb.Products, productRowFromCells(i+2, cells))
	}

	if variantsSheet := findSheet(f, models.SheetVariants); variantsSheet != "" {
		variantRows, err := f.GetRows(variantsSheet)
		if err != nil {
			return nil, structuralErr("PARSE_ERROR", "failed to read sheet %q: %v", variantsSheet, err)
		}
		if len(variantRows) == 0 {
			return nil, structuralErr("MISSING_COLUMN", "Variants sheet has no header row")
		}
		vheaders := normalizeHeaders(variantRows[0])
		if missing := missingColumns(vheaders, requiredVariantColumns); len(missing) > 0 {
			return nil, structuralErr("MISSING_COLUMN", "Variants sheet is missing required column(s): %s", strings.Join(missing, ", "))
		}
		for i, row := range variantRows[1:] {
			cells := recordToMap(vheaders, row)
			if emptyRow(cells) {
				continue
			}
			wb.Variants = append(wb.Variants, variantRowFromCells(i+2, cells))
		}
	}

	return wb, nil
}

func findSheet(f *excelize.File, name string) string {
	for _, sheet := range f.GetSheetList() {
		if strings.EqualFold(sheet, name) {
			return sheet
		}
	}
	return ""
}

func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		h = strings.TrimSuffix(h, " *")
		out[i] = strings.ToLower(h)
	}
	return out
}

func missingColumns(headers []string, required []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func recordToMap(headers []string, record []string) map[string]string {
	cells := make(map[string]string, len(headers))
	for i, value := range record {
		if i < len(headers) && headers[i] != "" {
			cells[headers[i]] = strings.TrimSpace(value)
		}
	}
	return cells
}

func emptyRow(cells map[string]string) bool {
	for _, v := range cells {
		if v != "" {
			return false
		}
	}
	return true
}

func productRowFromCells(line int, cells map[string]string) ProductRow {
	return ProductRow{
		Line:            line,
		Brand:           cells["brand"],
		CategoryPath:    cells["category"],
		Series:          cells["series"],
		Name:            cells["product name"],
		Slug:            cells["product slug"],
		TitleTR:         cells["title (tr)"],
		TitleEN:         cells["title (en)"],
		Status:          cells["status"],
		IsFeatured:      cells["is featured"],
		LongDescription: cells["long description"],
		GeneralFeatures: cells["general features"],
		ShortSpecs:      cells["short specs"],
		TaxonomyPath:    cells["taxonomy path"],
	}
}

func variantRowFromCells(line int, cells map[string]string) VariantRow {
	row := VariantRow{
		Line:        line,
		ProductSlug: cells["product slug"],
		ModelCode:   cells["model code"],
		NameTR:      cells["variant name (tr)"],
		NameEN:      cells["variant name (en)"],
		SKU:         cells["sku"],
		Dimensions:  cells["dimensions"],
		Weight:      cells["weight"],
		ListPrice:   cells["list price"],
		StockQty:    cells["stock qty"],
	}
	for header, value := range cells {
		if strings.HasPrefix(header, specColumnPrefix) && value != "" {
			key := NormalizeSpecKey(strings.TrimPrefix(header, specColumnPrefix))
			if key == "" {
				continue
			}
			if row.Specs == nil {
				row.Specs = make(map[string]string)
			}
			row.Specs[key] = value
		}
	}
	return row
}
