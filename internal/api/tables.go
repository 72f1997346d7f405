package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mapform/internal/pg"
	"mapform/internal/record"
	"mapform/internal/schema"
)

// Обработчики управления схемой: таблицы и их поля.

func TableCreateHandler(p *pg.Provisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var def schema.TableDefinition
		if err := c.ShouldBindJSON(&def); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		def.CreatedBy = actorFrom(c)
		created, err := p.CreateTable(c.Request.Context(), &def)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func TableListHandler(cat *schema.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs, err := cat.List(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, defs)
	}
}

func TableGetHandler(cat *schema.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := cat.GetByName(c.Request.Context(), c.Param("table"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, def)
	}
}

func TableDeleteHandler(p *pg.Provisioner, cat *schema.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := cat.GetByName(c.Request.Context(), c.Param("table"))
		if err != nil {
			renderError(c, err)
			return
		}
		if err := p.DeleteTable(c.Request.Context(), def.ID); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": def.Name})
	}
}

func FieldAddHandler(p *pg.Provisioner, cat *schema.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := cat.GetByName(c.Request.Context(), c.Param("table"))
		if err != nil {
			renderError(c, err)
			return
		}
		var f schema.FieldDefinition
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		updated, err := p.AddField(c.Request.Context(), def.ID, &f)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func TableStatsHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context(), c.Param("table"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
