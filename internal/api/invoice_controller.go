package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"partsledger/internal/models"
	"partsledger/internal/services"
)

// InvoiceController serves the invoice ledger.
type InvoiceController struct {
	invoices *services.InvoiceService
}

func NewInvoiceController(invoices *services.InvoiceService) *InvoiceController {
	return &InvoiceController{invoices: invoices}
}

// CreateInvoice stores a new invoice as ongoing or completed.
// POST /api/v1/invoices
func (ic *InvoiceController) CreateInvoice(c *gin.Context) {
	var draft services.InvoiceDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid invoice payload", err)
		return
	}
	inv, err := ic.invoices.Create(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListInvoices returns every invoice, optionally filtered by ?status=.
// GET /api/v1/invoices?status=completed
func (ic *InvoiceController) ListInvoices(c *gin.Context) {
	invoices, err := ic.invoices.List(c.Request.Context(), models.InvoiceStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// GET /api/v1/invoices/ongoing
func (ic *InvoiceController) ListOngoing(c *gin.Context) {
	invoices, err := ic.invoices.ListOngoing(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// GET /api/v1/invoices/:id
func (ic *InvoiceController) GetInvoice(c *gin.Context) {
	inv, err := ic.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// CompleteInvoice finalizes an ongoing invoice and takes its stock.
// PUT /api/v1/invoices/:id/complete
func (ic *InvoiceController) CompleteInvoice(c *gin.Context) {
	inv, err := ic.invoices.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DeleteInvoice soft-deletes an invoice, returning stock of a completed one.
// DELETE /api/v1/invoices/:id
func (ic *InvoiceController) DeleteInvoice(c *gin.Context) {
	inv, err := ic.invoices.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Invoice deleted",
		"invoice": inv,
	})
}

// Receipt returns the printable thermal receipt.
// GET /api/v1/invoices/:id/receipt
func (ic *InvoiceController) Receipt(c *gin.Context) {
	text, err := ic.invoices.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

// ThermalReceipt wraps the receipt in JSON for the POS front end.
// GET /api/v1/invoices/:id/thermal-receipt
func (ic *InvoiceController) ThermalReceipt(c *gin.Context) {
	text, err := ic.invoices.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": text})
}
