package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mapform/internal/query"
	"mapform/internal/record"
)

// Обработчики данных динамических таблиц.

// parseListParams разбирает query-параметры листинга. Служебные ключи —
// limit/offset/sort (и варианты с подчёркиванием), include_deleted; всё
// остальное трактуется как eq-фильтр по одноимённому полю.
func parseListParams(q url.Values) query.Options {
	opts := query.Options{Limit: 50}

	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n > 0 && n <= 1000 {
			opts.Limit = n
		}
	}

	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	// sort=-price,name → по price убыв., затем name возр.
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	if sv != "" {
		for _, p := range strings.Split(sv, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			desc := false
			if strings.HasPrefix(p, "-") {
				desc = true
				p = strings.TrimPrefix(p, "-")
			} else {
				p = strings.TrimPrefix(p, "+")
			}
			if p != "" {
				opts.Order = append(opts.Order, query.OrderKey{Field: p, Desc: desc})
			}
		}
	}

	opts.IncludeDeleted = q.Get("include_deleted") == "true"

	for key, vals := range q {
		switch key {
		case "limit", "offset", "sort",
			"_limit", "_offset", "_sort",
			"include_deleted":
			continue
		}
		for _, v := range vals {
			if strings.TrimSpace(v) == "" {
				continue
			}
			opts.Filters = append(opts.Filters, query.Filter{
				Field: key, Op: query.OpEq, Value: v,
			})
		}
	}

	return opts
}

func RecordListHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := parseListParams(c.Request.URL.Query())
		res, err := svc.Query(c.Request.Context(), c.Param("table"), opts)
		if err != nil {
			renderError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.FormatInt(res.Total, 10))
		c.JSON(http.StatusOK, res.Data)
	}
}

// RecordQueryHandler — расширенный поиск: фильтры с операторами в теле.
func RecordQueryHandler(svc *record.Service) gin.HandlerFunc {
	type body struct {
		Filters        []query.Filter `json:"filters"`
		OrderBy        string         `json:"orderBy"`
		OrderDesc      bool           `json:"orderDesc"`
		Limit          int            `json:"limit"`
		Offset         int            `json:"offset"`
		IncludeDeleted bool           `json:"includeDeleted"`
	}
	return func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		res, err := svc.Query(c.Request.Context(), c.Param("table"), query.Options{
			Filters:        b.Filters,
			OrderBy:        b.OrderBy,
			OrderDesc:      b.OrderDesc,
			Limit:          b.Limit,
			Offset:         b.Offset,
			IncludeDeleted: b.IncludeDeleted,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.FormatInt(res.Total, 10))
		c.JSON(http.StatusOK, res)
	}
}

func RecordCreateHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var data map[string]any
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		row, err := svc.Insert(c.Request.Context(), c.Param("table"), data, actorFrom(c))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

func RecordGetHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := svc.GetByID(c.Request.Context(), c.Param("table"), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func RecordUpdateHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var data map[string]any
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		row, err := svc.Update(c.Request.Context(), c.Param("table"), c.Param("id"), data, actorFrom(c))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func RecordDeleteHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("table"), c.Param("id"), actorFrom(c)); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}

// RecordHardDeleteHandler — физическое удаление, без записи истории.
func RecordHardDeleteHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.HardDelete(c.Request.Context(), c.Param("table"), c.Param("id")); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id"), "hard": true})
	}
}

// RecordBulkHandler — пакетная вставка, всё-или-ничего.
func RecordBulkHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var records []map[string]any
		if err := c.ShouldBindJSON(&records); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON array"})
			return
		}
		if len(records) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty batch"})
			return
		}
		rows, err := svc.BulkInsert(c.Request.Context(), c.Param("table"), records, actorFrom(c))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"inserted": len(rows), "records": rows})
	}
}

// RecordSpatialHandler — within / distance / intersects.
// Тело: {"column": "...", "type": "...", "params": {...}}.
func RecordSpatialHandler(svc *record.Service) gin.HandlerFunc {
	type body struct {
		Column string         `json:"column"`
		Type   string         `json:"type"`
		Params map[string]any `json:"params"`
	}
	return func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rows, err := svc.SpatialQuery(c.Request.Context(), c.Param("table"), b.Column, b.Type, b.Params)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func RecordHistoryHandler(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.GetHistory(c.Request.Context(), c.Param("table"), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
