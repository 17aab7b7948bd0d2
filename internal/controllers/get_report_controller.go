package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/xebench/internal/services"

	"github.com/gin-gonic/gin"
)

type getReportController struct{ svc services.ReportService }

func NewGetReportController(s services.ReportService) *getReportController {
	return &getReportController{svc: s}
}

func (h *getReportController) Handle(c *gin.Context) {
	rep, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
