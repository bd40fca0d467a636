package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"partsledger/internal/services"
)

// CatalogController serves the item catalog.
type CatalogController struct {
	catalog *services.CatalogService
}

func NewCatalogController(catalog *services.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// ListItems returns the catalog, or search hits when ?search= is given.
// GET /api/v1/items?search=brake
func (cc *CatalogController) ListItems(c *gin.Context) {
	items, err := cc.catalog.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/v1/items/low-stock
func (cc *CatalogController) LowStock(c *gin.Context) {
	items, err := cc.catalog.GetLowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/v1/items/:id
func (cc *CatalogController) GetItem(c *gin.Context) {
	item, err := cc.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateItem adds one item to the catalog.
// POST /api/v1/items
func (cc *CatalogController) CreateItem(c *gin.Context) {
	var draft services.ItemDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid item payload", err)
		return
	}
	item, err := cc.catalog.Add(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateItem patches descriptive fields, prices or min stock.
// PUT /api/v1/items/:id
func (cc *CatalogController) UpdateItem(c *gin.Context) {
	var patch services.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid item payload", err)
		return
	}
	item, err := cc.catalog.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type stockRequest struct {
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes"`
	PerformedBy string `json:"performed_by"`
}

// Restock records a delivery.
// POST /api/v1/items/:id/restock {"quantity": 10, "notes": "PO-17"}
func (cc *CatalogController) Restock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid restock payload", err)
		return
	}
	item, err := cc.catalog.Restock(c.Request.Context(), c.Param("id"), req.Quantity, req.Notes, req.PerformedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdjustStock applies a signed manual correction.
// POST /api/v1/items/:id/adjust {"quantity": -2, "notes": "damaged"}
func (cc *CatalogController) AdjustStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid adjustment payload", err)
		return
	}
	item, err := cc.catalog.AdjustStock(c.Request.Context(), c.Param("id"), req.Quantity, req.Notes, req.PerformedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GET /api/v1/items/:id/movements
func (cc *CatalogController) Movements(c *gin.Context) {
	moves, err := cc.catalog.Movements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": moves,
		"count":     len(moves),
	})
}

// ImportItems loads a catalog sheet uploaded as multipart field "file".
// POST /api/v1/items/import
func (cc *CatalogController) ImportItems(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required", err)
		return
	}
	// An explicit format wins over the file extension.
	format := services.ImportFormat(strings.ToLower(strings.TrimSpace(c.PostForm("format"))))
	if format == "" {
		if format, err = services.FormatFromFilename(header.Filename); err != nil {
			respondError(c, err)
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file", err)
		return
	}
	defer file.Close()

	result, err := cc.catalog.Import(c.Request.Context(), file, format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
