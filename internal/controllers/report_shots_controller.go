package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/xebench/internal/services"

	"github.com/gin-gonic/gin"
)

type reportShotsController struct{ svc services.ReportService }

func NewReportShotsController(s services.ReportService) *reportShotsController {
	return &reportShotsController{svc: s}
}

func (h *reportShotsController) Handle(c *gin.Context) {
	id := c.Param("id")
	groups, err := h.svc.Shots(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportId": id, "shotGroups": groups})
}
