package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"partsledger/internal/services"
)

type DashboardController struct {
	dashboard *services.DashboardService
}

func NewDashboardController(dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard}
}

// Stats recomputes the dashboard figures on every call.
// GET /api/v1/dashboard/stats
func (dc *DashboardController) Stats(c *gin.Context) {
	stats, err := dc.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
