package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mapform/internal/pg"
	"mapform/internal/reference"
)

// RepairHandler перегенерирует DDL по всем таблицам каталога. Идемпотентно,
// досоздаёт отсутствующие объекты после ручных вмешательств в БД.
func RepairHandler(p *pg.Provisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := p.Repair(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"repaired": n})
	}
}

// ReferenceListHandler отдаёт имена загруженных справочников.
func ReferenceListHandler(enums map[string]reference.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := make([]string, 0, len(enums))
		for name := range enums {
			names = append(names, name)
		}
		c.JSON(http.StatusOK, names)
	}
}

// ReferenceGetHandler — содержимое одного справочника.
func ReferenceGetHandler(enums map[string]reference.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		dir, ok := enums[c.Param("name")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Directory not found"})
			return
		}
		c.JSON(http.StatusOK, dir)
	}
}
