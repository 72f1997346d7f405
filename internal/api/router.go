package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mapform/internal/pg"
	"mapform/internal/record"
	"mapform/internal/reference"
	"mapform/internal/schema"
	"mapform/internal/workflow"
)

// Deps — всё, что нужно роутеру.
type Deps struct {
	Catalog     *schema.Catalog
	Provisioner *pg.Provisioner
	Records     *record.Service
	Workflows   *workflow.Store
	Dispatcher  *workflow.Dispatcher
	Enums       map[string]reference.Directory
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Actor-Id"},
		ExposeHeaders: []string{"X-Total-Count"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")
	{
		// схема
		apiGroup.GET("/tables", TableListHandler(d.Catalog))
		apiGroup.POST("/tables", TableCreateHandler(d.Provisioner))
		apiGroup.GET("/tables/:table", TableGetHandler(d.Catalog))
		apiGroup.DELETE("/tables/:table", TableDeleteHandler(d.Provisioner, d.Catalog))
		apiGroup.POST("/tables/:table/fields", FieldAddHandler(d.Provisioner, d.Catalog))

		// данные: статические "служебные" маршруты — СНАЧАЛА
		apiGroup.POST("/data/:table/_query", RecordQueryHandler(d.Records))
		apiGroup.POST("/data/:table/_bulk", RecordBulkHandler(d.Records))
		apiGroup.POST("/data/:table/_spatial", RecordSpatialHandler(d.Records))
		apiGroup.GET("/data/:table/_stats", TableStatsHandler(d.Records))

		// обычный CRUD
		apiGroup.GET("/data/:table", RecordListHandler(d.Records))
		apiGroup.POST("/data/:table", RecordCreateHandler(d.Records))
		apiGroup.GET("/data/:table/:id", RecordGetHandler(d.Records))
		apiGroup.PUT("/data/:table/:id", RecordUpdateHandler(d.Records))
		apiGroup.PATCH("/data/:table/:id", RecordUpdateHandler(d.Records))
		apiGroup.DELETE("/data/:table/:id", RecordDeleteHandler(d.Records))
		apiGroup.DELETE("/data/:table/:id/hard", RecordHardDeleteHandler(d.Records))
		apiGroup.GET("/data/:table/:id/history", RecordHistoryHandler(d.Records))

		// workflow
		apiGroup.GET("/workflows", WorkflowListHandler(d.Workflows))
		apiGroup.POST("/workflows", WorkflowCreateHandler(d.Workflows))
		apiGroup.GET("/workflows/:id", WorkflowGetHandler(d.Workflows))
		apiGroup.PUT("/workflows/:id", WorkflowUpdateHandler(d.Workflows))
		apiGroup.DELETE("/workflows/:id", WorkflowDeleteHandler(d.Workflows))
		apiGroup.POST("/workflows/:id/activate", WorkflowActivateHandler(d.Workflows, true))
		apiGroup.POST("/workflows/:id/deactivate", WorkflowActivateHandler(d.Workflows, false))
		apiGroup.POST("/workflows/:id/run", WorkflowRunHandler(d.Dispatcher))
		apiGroup.GET("/workflows/:id/executions", WorkflowExecutionsHandler(d.Workflows))

		// справочники и обслуживание
		apiGroup.GET("/reference", ReferenceListHandler(d.Enums))
		apiGroup.GET("/reference/:name", ReferenceGetHandler(d.Enums))
		apiGroup.POST("/admin/repair", RepairHandler(d.Provisioner))
	}

	return r
}
