package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mapform/internal/workflow"
)

// Обработчики workflow: CRUD графов, активация, ручной запуск, журналы.

func WorkflowCreateHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var w workflow.Workflow
		if err := c.ShouldBindJSON(&w); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		w.CreatedBy = actorFrom(c)
		created, err := store.Create(c.Request.Context(), &w)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func WorkflowListHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		workflows, err := store.List(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, workflows)
	}
}

func WorkflowGetHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

func WorkflowUpdateHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var w workflow.Workflow
		if err := c.ShouldBindJSON(&w); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		updated, err := store.Update(c.Request.Context(), c.Param("id"), &w)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func WorkflowDeleteHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}

func WorkflowActivateHandler(store *workflow.Store, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.SetActive(c.Request.Context(), c.Param("id"), active); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "isActive": active})
	}
}

// WorkflowRunHandler — синхронный ручной запуск. Тело (опционально) —
// payload, доступный узлам как trigger.*.
func WorkflowRunHandler(d *workflow.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload map[string]any
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&payload); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}
		ex, err := d.RunManual(c.Request.Context(), c.Param("id"), payload)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, ex)
	}
}

func WorkflowExecutionsHandler(store *workflow.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if lv := c.Query("limit"); lv != "" {
			if n, err := strconv.Atoi(lv); err == nil && n > 0 {
				limit = n
			}
		}
		executions, err := store.ListExecutions(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, executions)
	}
}
