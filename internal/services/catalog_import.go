package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"partsledger/internal/models"
)

// ImportFormat selects the parser used by Import.
type ImportFormat string

const (
	FormatCSV  ImportFormat = "csv"
	FormatXLSX ImportFormat = "xlsx"
)

// FormatFromFilename picks the import format from a file extension.
func FormatFromFilename(name string) (ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", invalid("file", "unsupported file type %q, expected .csv or .xlsx", filepath.Ext(name))
}

// columnAliases maps accepted header spellings to draft fields.
var columnAliases = map[string]string{
	"sku":            "sku",
	"code":           "sku",
	"part number":    "sku",
	"name":           "name",
	"item":           "name",
	"description":    "name",
	"category":       "category",
	"sub_category":   "sub_category",
	"sub category":   "sub_category",
	"subcategory":    "sub_category",
	"brand":          "brand",
	"cost_price":     "cost_price",
	"cost price":     "cost_price",
	"cost":           "cost_price",
	"selling_price":  "selling_price",
	"selling price":  "selling_price",
	"price":          "selling_price",
	"mrp":            "selling_price",
	"stock_quantity": "stock_quantity",
	"stock":          "stock_quantity",
	"qty":            "stock_quantity",
	"quantity":       "stock_quantity",
	"min_stock":      "min_stock",
	"min stock":      "min_stock",
	"minimum":        "min_stock",
}

// Import reads a catalog file and adds every valid row. Invalid rows are
// reported in the result and do not stop the import.
func (s *CatalogService) Import(ctx context.Context, r io.Reader, format ImportFormat) (*models.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = readCSV(data, s.charset())
	case FormatXLSX:
		rows, err = readXLSX(data)
	default:
		return nil, invalid("format", "unsupported import format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, invalid("file", "no data rows found")
	}

	columns := mapHeader(rows[0])
	if _, ok := columns["sku"]; !ok {
		return nil, invalid("file", "missing sku column")
	}
	if _, ok := columns["name"]; !ok {
		return nil, invalid("file", "missing name column")
	}

	result := &models.ImportResult{}
	for i, record := range rows[1:] {
		rowNum := i + 2
		if blankRow(record) {
			continue
		}
		row := models.ImportRowResult{Row: rowNum}

		draft, errs := parseDraft(record, columns)
		if len(errs) == 0 {
			item, err := s.Add(ctx, draft)
			if err != nil {
				errs = append(errs, err.Error())
			} else {
				row.Item = item
			}
		}

		if len(errs) > 0 {
			row.Status = "error"
			row.Errors = errs
			result.ErrorCount++
		} else {
			row.Status = "imported"
			result.ImportedCount++
		}
		result.Rows = append(result.Rows, row)
	}

	s.log.Info("📥 Catalog import finished",
		zap.String("format", string(format)),
		zap.Int("imported", result.ImportedCount),
		zap.Int("errors", result.ErrorCount))
	return result, nil
}

// charsets lists the legacy encodings accepted for non-UTF-8 CSV files.
var charsets = map[string]*charmap.Charmap{
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
}

// SetImportCharset selects the fallback encoding of CSV imports that are not valid UTF-8.
func (s *CatalogService) SetImportCharset(name string) error {
	if name == "" {
		s.importCharset = nil
		return nil
	}
	cm, ok := charsets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown import charset %q", name)
	}
	s.importCharset = cm
	return nil
}

func (s *CatalogService) charset() *charmap.Charmap {
	if s.importCharset == nil {
		return charmap.Windows1252
	}
	return s.importCharset
}

func readCSV(data []byte, cm *charmap.Charmap) ([][]string, error) {
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(cm.NewDecoder(), data)
		if err == nil {
			data = decoded
		}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, invalid("file", "malformed CSV: %v", err)
	}
	return rows, nil
}

// detectDelimiter picks the most frequent of , ; and tab in the first line.
func detectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("file", "cannot open XLSX: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, invalid("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func mapHeader(header []string) map[string]int {
	out := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.Trim(h, "\"'\t")))
		if field, ok := columnAliases[key]; ok {
			if _, dup := out[field]; !dup {
				out[field] = i
			}
		}
	}
	return out
}

func blankRow(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseDraft(record []string, columns map[string]int) (ItemDraft, []string) {
	cell := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var errs []string
	money := func(field string) decimal.Decimal {
		raw := strings.ReplaceAll(cell(field), " ", "")
		if raw == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a number", field, raw))
		}
		return d
	}
	integer := func(field string) (int, bool) {
		raw := cell(field)
		if raw == "" {
			return 0, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a whole number", field, raw))
			return 0, false
		}
		return n, true
	}

	d := ItemDraft{
		SKU:          cell("sku"),
		Name:         cell("name"),
		Category:     cell("category"),
		SubCategory:  cell("sub_category"),
		Brand:        cell("brand"),
		CostPrice:    money("cost_price"),
		SellingPrice: money("selling_price"),
	}
	d.StockQuantity, _ = integer("stock_quantity")
	if n, ok := integer("min_stock"); ok {
		d.MinStock = &n
	}
	return d, errs
}
