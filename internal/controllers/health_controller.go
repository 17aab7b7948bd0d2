package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/xebench/internal/services"

	"github.com/gin-gonic/gin"
)

type healthController struct{ svc services.ReportService }

func NewHealthController(s services.ReportService) *healthController {
	return &healthController{svc: s}
}

func (h *healthController) Handle(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
