package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mapform/internal/apperr"
	"mapform/internal/logger"
	"mapform/internal/query"
	"mapform/internal/reference"
	"mapform/internal/schema"
)

// Service — основной read/write API по динамическим таблицам: валидация,
// конвертация геометрии, журнал истории, soft/hard delete и уведомление
// движка workflow.
type Service struct {
	db       *sql.DB
	catalog  *schema.Catalog
	enums    map[string]reference.Directory
	notifier Notifier
	log      *logger.Logger
}

func NewService(db *sql.DB, catalog *schema.Catalog, enums map[string]reference.Directory, log *logger.Logger) *Service {
	return &Service{
		db:      db,
		catalog: catalog,
		enums:   enums,
		log:     log.With("component", "record"),
	}
}

// SetNotifier подключает получателя событий (диспетчер workflow).
// Вызывается один раз при сборке приложения.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Ensure создаёт системные таблицы сервиса.
func (s *Service) Ensure(ctx context.Context) error {
	return s.ensureHistoryTable(ctx)
}

func normalizeActor(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}

// Insert валидирует и вставляет одну строку, пишет HistoryEntry и шлёт
// RECORD_CREATED. Возвращает строку с геометрией уже в GeoJSON.
func (s *Service) Insert(ctx context.Context, tableName string, data map[string]any, actor string) (map[string]any, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if errs := validateInsert(def, data, s.enums); len(errs) > 0 {
		return nil, apperr.NewValidation(errs...)
	}

	row, err := s.execReturning(ctx, def, func() (string, []any, error) {
		return query.Insert(def, data)
	})
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(data))
	for i := range def.Fields {
		if _, ok := data[def.Fields[i].Name]; ok {
			changed = append(changed, def.Fields[i].Name)
		}
	}
	s.logHistory(ctx, HistoryEntry{
		TableID:       def.ID,
		RecordID:      rowID(row),
		Operation:     OpInsert,
		PerformedBy:   normalizeActor(actor),
		ChangedFields: changed,
	})

	s.notify(Event{Type: EventRecordCreated, TableID: def.ID, TableName: def.Name,
		Actor: normalizeActor(actor), Record: row})
	return row, nil
}

// QueryResult — страница данных плюс отфильтрованный total.
type QueryResult struct {
	Data  []map[string]any `json:"data"`
	Total int64            `json:"total"`
}

// Query — фильтрованная постраничная выборка; total считается под теми же фильтрами.
func (s *Service) Query(ctx context.Context, tableName string, opts query.Options) (*QueryResult, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}

	sqlText, args, err := query.Select(def, opts)
	if err != nil {
		return nil, apperr.NewValidation(apperr.Ferr(apperr.CodeTypeMismatch, "filters", err.Error()))
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	data, err := func() ([]map[string]any, error) {
		defer rows.Close()
		return rowsToMaps(rows, def)
	}()
	if err != nil {
		return nil, err
	}

	countSQL, countArgs, err := query.Count(def, opts.Filters, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", tableName, err)
	}

	if data == nil {
		data = []map[string]any{}
	}
	return &QueryResult{Data: data, Total: total}, nil
}

// GetByID — точечная выборка живой строки.
func (s *Service) GetByID(ctx context.Context, tableName, id string) (map[string]any, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := query.SelectByID(def, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs, err := rowsToMaps(rows, def)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFoundf("record %s in %s", id, tableName)
	}
	return recs[0], nil
}

// Update читает пре-образ (для диффа), применяет частичное обновление,
// пишет UPDATE HistoryEntry со снапшотом и шлёт RECORD_UPDATED.
func (s *Service) Update(ctx context.Context, tableName, id string, data map[string]any, actor string) (map[string]any, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if errs := validateValues(def, data, s.enums); len(errs) > 0 {
		return nil, apperr.NewValidation(errs...)
	}

	previous, err := s.GetByID(ctx, tableName, id)
	if err != nil {
		return nil, err
	}

	row, err := s.execReturning(ctx, def, func() (string, []any, error) {
		return query.Update(def, id, data)
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		// гонка: строку успели удалить между чтением и апдейтом
		return nil, apperr.NotFoundf("record %s in %s", id, tableName)
	}

	if changed := diffFields(previous, data); len(changed) > 0 {
		s.logHistory(ctx, HistoryEntry{
			TableID:       def.ID,
			RecordID:      id,
			Operation:     OpUpdate,
			PerformedBy:   normalizeActor(actor),
			ChangedFields: changed,
			PreviousData:  previous,
		})
	}

	s.notify(Event{Type: EventRecordUpdated, TableID: def.ID, TableName: def.Name,
		Actor: normalizeActor(actor), Record: row})
	return row, nil
}

// Delete — soft delete: ставит deleted_at, пишет DELETE HistoryEntry со
// снапшотом. Workflow-события не шлются.
func (s *Service) Delete(ctx context.Context, tableName, id string, actor string) error {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return err
	}
	previous, err := s.GetByID(ctx, tableName, id)
	if err != nil {
		return err
	}

	sqlText, args, err := query.SoftDelete(def, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", tableName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("record %s in %s", id, tableName)
	}

	s.logHistory(ctx, HistoryEntry{
		TableID:      def.ID,
		RecordID:     id,
		Operation:    OpDelete,
		PerformedBy:  normalizeActor(actor),
		PreviousData: previous,
	})
	return nil
}

// HardDelete окончательно удаляет строку. Без записи истории — только для
// разрушающих сценариев обслуживания.
func (s *Service) HardDelete(ctx context.Context, tableName, id string) error {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return err
	}
	sqlText, args, err := query.HardDelete(def, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return fmt.Errorf("hard delete from %s: %w", tableName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("record %s in %s", id, tableName)
	}
	return nil
}

// BulkRowError — ошибка валидации конкретной строки пакета (нумерация с 1).
type BulkRowError struct {
	Row    int                `json:"row"`
	Errors []apperr.FieldError `json:"errors"`
}

// BulkError — пакет отклонён целиком: ни одна строка не вставлена.
type BulkError struct {
	Rows []BulkRowError `json:"rows"`
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk insert rejected: %d invalid row(s)", len(e.Rows))
}

// BulkInsert — всё-или-ничего: сначала валидируются ВСЕ строки, вставка
// начинается только если ошибок нет. На каждую вставленную строку — своя
// запись истории.
func (s *Service) BulkInsert(ctx context.Context, tableName string, records []map[string]any, actor string) ([]map[string]any, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var bulk BulkError
	for i, rec := range records {
		if errs := validateInsert(def, rec, s.enums); len(errs) > 0 {
			bulk.Rows = append(bulk.Rows, BulkRowError{Row: i + 1, Errors: errs})
		}
	}
	if len(bulk.Rows) > 0 {
		return nil, &bulk
	}

	out := make([]map[string]any, 0, len(records))
	for i, rec := range records {
		row, err := s.execReturning(ctx, def, func() (string, []any, error) {
			return query.Insert(def, rec)
		})
		if err != nil {
			return nil, fmt.Errorf("bulk insert row %d: %w", i+1, err)
		}
		changed := make([]string, 0, len(rec))
		for j := range def.Fields {
			if _, ok := rec[def.Fields[j].Name]; ok {
				changed = append(changed, def.Fields[j].Name)
			}
		}
		s.logHistory(ctx, HistoryEntry{
			TableID:       def.ID,
			RecordID:      rowID(row),
			Operation:     OpInsert,
			PerformedBy:   normalizeActor(actor),
			ChangedFields: changed,
		})
		out = append(out, row)
	}
	return out, nil
}

// SpatialQuery — within / distance / intersects по геометрической колонке.
func (s *Service) SpatialQuery(ctx context.Context, tableName, geomColumn, queryType string, params map[string]any) ([]map[string]any, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := query.Spatial(def, geomColumn, queryType, params)
	if err != nil {
		return nil, apperr.NewValidation(apperr.Ferr(apperr.CodeInvalidGeometry, geomColumn, err.Error()))
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("spatial query %s: %w", tableName, err)
	}
	defer rows.Close()
	recs, err := rowsToMaps(rows, def)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []map[string]any{}
	}
	return recs, nil
}

// TableStats — агрегат по таблице.
type TableStats struct {
	Total       int64      `json:"total"`
	Active      int64      `json:"active"`
	Deleted     int64      `json:"deleted"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

func (s *Service) Stats(ctx context.Context, tableName string) (*TableStats, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	sqlText, err := query.Stats(def)
	if err != nil {
		return nil, err
	}
	var st TableStats
	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, sqlText).Scan(&st.Total, &st.Active, &st.Deleted, &last); err != nil {
		return nil, fmt.Errorf("stats %s: %w", tableName, err)
	}
	if last.Valid {
		st.LastUpdated = &last.Time
	}
	return &st, nil
}

// execReturning выполняет INSERT/UPDATE с RETURNING и декодирует одну строку.
// Возвращает nil без ошибки, если RETURNING не дал строк.
func (s *Service) execReturning(ctx context.Context, def *schema.TableDefinition, build func() (string, []any, error)) (map[string]any, error) {
	sqlText, args, err := build()
	if err != nil {
		return nil, apperr.NewValidation(apperr.Ferr(apperr.CodeTypeMismatch, "data", err.Error()))
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		// ошибка исполнения отдаётся как есть, без подмены
		return nil, err
	}
	defer rows.Close()
	recs, err := rowsToMaps(rows, def)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func rowID(row map[string]any) string {
	if row == nil {
		return ""
	}
	if id, ok := row["id"].(string); ok {
		return id
	}
	return fmt.Sprintf("%v", row["id"])
}
