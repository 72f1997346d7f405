package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mapform/internal/apperr"
	"mapform/internal/record"
)

// renderError переводит доменные ошибки в HTTP-ответ единого формата:
// {"error": "..."} либо {"errors": [...]} для ошибок валидации.
func renderError(c *gin.Context, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"errors": v.Errors})
		return
	}
	var bulk *record.BulkError
	if errors.As(err, &bulk) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": bulk.Error(),
			"rows":  bulk.Rows,
		})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// actorFrom — кто выполняет операцию. Аутентификации нет, клиент передаёт
// себя заголовком.
func actorFrom(c *gin.Context) string {
	actor := strings.TrimSpace(c.GetHeader("X-Actor-Id"))
	if actor == "" {
		return "system"
	}
	return actor
}
