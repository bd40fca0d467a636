package models

// ImportRowResult is the validation outcome of one import row.
type ImportRowResult struct {
	Row    int      `json:"row"`
	Item   *Item    `json:"item,omitempty"`
	Status string   `json:"status"` // "imported" or "error"
	Errors []string `json:"errors,omitempty"`
}

// ImportResult summarizes a bulk catalog import.
type ImportResult struct {
	ImportedCount int               `json:"imported_count"`
	ErrorCount    int               `json:"error_count"`
	Rows          []ImportRowResult `json:"rows"`
}
