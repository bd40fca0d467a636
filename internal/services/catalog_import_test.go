package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"partsledger/internal/store"
)

func TestImport_CSV(t *testing.T) {
	catalog := NewCatalogService(store.NewMemoryStore())
	data := strings.Join([]string{
		"SKU;Name;Category;Sub Category;Brand;Cost Price;Selling Price;Stock;Min Stock",
		"BRK-100;Brake pad;Brakes;Front;Bosch;150;200.00;5;",
		"BRK-100;Brake pad OEM;Brakes;Front;Bosch;170;260;2;3",
		"FLT-9;Cabin filter;Filters;;Mann;4;9;6;0",
		";Nameless;Brakes;;;1;1;1;1",
		"OIL-1;Oil;Lubricants;;;abc;10;1;1",
		";;;;;;;;",
	}, "\n")

	res, err := catalog.Import(context.Background(), strings.NewReader(data), FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ImportedCount)
	assert.Equal(t, 2, res.ErrorCount)
	require.Len(t, res.Rows, 5)
	assert.Equal(t, 2, res.Rows[0].Row)
	assert.Equal(t, 5, res.Rows[0].Item.MinStock, "blank min stock gets the default")
	assert.Equal(t, 3, res.Rows[1].Item.MinStock)
	assert.Equal(t, 0, res.Rows[2].Item.MinStock, "explicit zero is kept")
	assert.Equal(t, "error", res.Rows[3].Status)
	assert.Contains(t, res.Rows[4].Errors[0], "cost_price")

	found, err := catalog.Search(context.Background(), "brk-100")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestImport_CSVLegacyEncoding(t *testing.T) {
	catalog := NewCatalogService(store.NewMemoryStore())
	// "Café filter" in Windows-1252
	data := []byte("sku,name,price\nF-1,Caf\xe9 filter,12\n")

	res, err := catalog.Import(context.Background(), bytes.NewReader(data), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, "Café filter", res.Rows[0].Item.Name)
}

func TestImport_MissingColumns(t *testing.T) {
	catalog := NewCatalogService(store.NewMemoryStore())

	_, err := catalog.Import(context.Background(), strings.NewReader("name,price\nx,1\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = catalog.Import(context.Background(), strings.NewReader("sku,name\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImport_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"SKU", "Name", "Category", "Selling Price", "Stock"},
		{"FLT-9", "Air filter", "Filters", "350", "25"},
		{"FLT-10", "Oil filter", "Filters", "-5", "1"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	catalog := NewCatalogService(store.NewMemoryStore())
	res, err := catalog.Import(context.Background(), &buf, FormatXLSX)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, 25, res.Rows[0].Item.StockQuantity)
	assert.Contains(t, res.Rows[1].Errors[0], "selling_price")
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("Catalog.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = FormatFromFilename("parts.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFromFilename("parts.pdf")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSetImportCharset(t *testing.T) {
	catalog := NewCatalogService(store.NewMemoryStore())
	assert.NoError(t, catalog.SetImportCharset("Windows-1251"))
	assert.Error(t, catalog.SetImportCharset("ebcdic"))
}
