package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/xebench/internal/middleware"
	"github.com/osvaldoandrade/xebench/pkg/persistence"
)

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	middleware.Logger(c).Error("request failed", "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
