package controllers

import (
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/xebench/internal/services"

	"github.com/gin-gonic/gin"
)

type listReportsController struct{ svc services.ReportService }

func NewListReportsController(s services.ReportService) *listReportsController {
	return &listReportsController{svc: s}
}

func (h *listReportsController) Handle(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	reps, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reps, "count": len(reps)})
}
