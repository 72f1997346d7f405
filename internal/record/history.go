package record

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry — одна неизменяемая запись аудита. Создаётся на каждую мутацию,
// никогда не обновляется и не удаляется.
type HistoryEntry struct {
	ID            string         `json:"id"`
	TableID       string         `json:"tableId"`
	RecordID      string         `json:"recordId"`
	Operation     string         `json:"operation"` // INSERT | UPDATE | DELETE
	PerformedBy   string         `json:"performedBy"`
	ChangedFields []string       `json:"changedFields"`
	PreviousData  map[string]any `json:"previousData,omitempty"`
	PerformedAt   time.Time      `json:"performedAt"`
}

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

const historyDDL = `
create table if not exists mf_record_history (
  id uuid primary key,
  table_id uuid not null,
  record_id uuid not null,
  operation text not null,
  performed_by text not null default 'system',
  changed_fields jsonb not null default '[]'::jsonb,
  previous_data jsonb,
  performed_at timestamptz not null default now()
);
create index if not exists mf_record_history_rec on mf_record_history (table_id, record_id, performed_at desc);
`

func (s *Service) ensureHistoryTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, historyDDL); err != nil {
		return fmt.Errorf("ensure history table: %w", err)
	}
	return nil
}

// logHistory пишет запись аудита. Ошибка здесь логируется и НЕ прерывает
// основную мутацию: аудит best-effort, не транзакционный с основной записью.
func (s *Service) logHistory(ctx context.Context, e HistoryEntry) {
	changed, err := json.Marshal(e.ChangedFields)
	if err != nil {
		s.log.Error("history: marshal changed fields", "error", err)
		return
	}
	var prev any
	if e.PreviousData != nil {
		b, err := json.Marshal(e.PreviousData)
		if err != nil {
			s.log.Error("history: marshal previous data", "error", err)
			return
		}
		prev = string(b)
	}
	_, err = s.db.ExecContext(ctx,
		`insert into mf_record_history (id, table_id, record_id, operation, performed_by, changed_fields, previous_data, performed_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), e.TableID, e.RecordID, e.Operation, e.PerformedBy,
		string(changed), prev, time.Now().UTC())
	if err != nil {
		s.log.Error("history write failed", "table", e.TableID, "record", e.RecordID, "op", e.Operation, "error", err)
	}
}

// GetHistory возвращает все записи аудита по строке, новые сверху.
func (s *Service) GetHistory(ctx context.Context, tableName, recordID string) ([]HistoryEntry, error) {
	def, err := s.catalog.GetByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, table_id, record_id, operation, performed_by, changed_fields, previous_data, performed_at
		 from mf_record_history
		 where table_id = $1 and record_id = $2
		 order by performed_at desc, id desc`,
		def.ID, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var changed []byte
		var prev []byte
		if err := rows.Scan(&e.ID, &e.TableID, &e.RecordID, &e.Operation, &e.PerformedBy,
			&changed, &prev, &e.PerformedAt); err != nil {
			return nil, err
		}
		if len(changed) > 0 {
			_ = json.Unmarshal(changed, &e.ChangedFields)
		}
		if len(prev) > 0 {
			_ = json.Unmarshal(prev, &e.PreviousData)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// diffFields — поля из data, чьё строковое представление отличается от пре-образа.
// Порядок стабильный (по имени поля).
func diffFields(previous, data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		if stringify(previous[k]) != stringify(data[k]) {
			out = append(out, fmt.Sprintf("%s: %s => %s", k, stringify(previous[k]), stringify(data[k])))
		}
	}
	return out
}
