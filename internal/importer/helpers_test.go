package importer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/models"
)

// memSource is an in-memory CatalogSource for resolver and reconciler tests
type memSource struct {
	brands     []models.Brand
	categories []models.Category
	series     []models.Series
	products   []models.Product
	variants   []models.Variant
}

func (m *memSource) ListBrands(ctx context.Context) ([]models.Brand, error) {
	return m.brands, nil
}

func (m *memSource) ListCategories(ctx context.Context) ([]models.Category, error) {
	return m.categories, nil
}

func (m *memSource) ListSeries(ctx context.Context) ([]models.Series, error) {
	return m.series, nil
}

func (m *memSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	return m.products, nil
}

func (m *memSource) ListVariants(ctx context.Context) ([]models.Variant, error) {
	return m.variants, nil
}

var productHeader = []string{"Brand", "Category", "Series", "Product Name", "Product Slug", "Title (TR)", "Title (EN)", "Status", "Is Featured"}

var variantHeader = []string{"Product Slug", "Model Code", "Variant Name (TR)", "Weight", "List Price", "Stock Qty", "Spec:Power"}

// xlsxBytes builds an in-memory workbook in the upload format. A nil
// variants slice omits the Variants sheet entirely.
func xlsxBytes(t *testing.T, products [][]string, variants [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", models.SheetProducts)
	writeSheet(t, f, models.SheetProducts, productHeader, products)
	if variants != nil {
		_, err := f.NewSheet(models.SheetVariants)
		require.NoError(t, err)
		writeSheet(t, f, models.SheetVariants, variantHeader, variants)
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func writeSheet(t *testing.T, f *excelize.File, sheet string, header []string, rows [][]string) {
	t.Helper()
	for i, value := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, value))
	}
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}
}
