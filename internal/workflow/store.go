package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mapform/internal/apperr"
	"mapform/internal/logger"
)

// Store — хранилище графов и журналов выполнения в системных таблицах.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func NewStore(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("component", "workflow-store")}
}

var storeDDL = []string{
	`create table if not exists mf_workflows (
  id uuid primary key,
  name text not null,
  description text not null default '',
  trigger_type text not null,
  table_id uuid,
  is_active boolean not null default false,
  nodes jsonb not null default '[]',
  edges jsonb not null default '[]',
  created_by text not null default 'system',
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
)`,
	`create index if not exists mf_workflows_trigger_idx on mf_workflows (trigger_type, table_id) where is_active`,
	`create table if not exists mf_workflow_executions (
  id text primary key,
  workflow_id uuid not null references mf_workflows (id) on delete cascade,
  status text not null,
  logs jsonb not null default '[]',
  completed_at timestamptz not null default now()
)`,
	`create index if not exists mf_workflow_executions_wf_idx on mf_workflow_executions (workflow_id, completed_at desc)`,
}

func (s *Store) Ensure(ctx context.Context) error {
	for _, ddl := range storeDDL {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("workflow ddl: %w", err)
		}
	}
	return nil
}

// Create валидирует граф и сохраняет workflow. Новый workflow неактивен,
// пока его явно не включат.
func (s *Store) Create(ctx context.Context, w *Workflow) (*Workflow, error) {
	if errs := ValidateGraph(w); len(errs) > 0 {
		return nil, apperr.NewValidation(errs...)
	}
	w.ID = uuid.NewString()
	if w.CreatedBy == "" {
		w.CreatedBy = "system"
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	nodes, edges, err := marshalGraph(w)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
insert into mf_workflows (id, name, description, trigger_type, table_id, is_active, nodes, edges, created_by, created_at, updated_at)
values ($1, $2, $3, $4, nullif($5, '')::uuid, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.Name, w.Description, w.TriggerType, w.TableID, w.IsActive,
		nodes, edges, w.CreatedBy, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert workflow: %w", err)
	}
	s.log.Info("workflow created", "id", w.ID, "name", w.Name, "trigger", w.TriggerType)
	return w, nil
}

// Update перезаписывает граф и свойства существующего workflow.
func (s *Store) Update(ctx context.Context, id string, w *Workflow) (*Workflow, error) {
	if errs := ValidateGraph(w); len(errs) > 0 {
		return nil, apperr.NewValidation(errs...)
	}
	nodes, edges, err := marshalGraph(w)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
update mf_workflows
set name = $2, description = $3, trigger_type = $4, table_id = nullif($5, '')::uuid,
    is_active = $6, nodes = $7, edges = $8, updated_at = now()
where id = $1::uuid`,
		id, w.Name, w.Description, w.TriggerType, w.TableID, w.IsActive, nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFoundf("workflow %s", id)
	}
	return s.Get(ctx, id)
}

// SetActive включает/выключает workflow без пересохранения графа.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update mf_workflows set is_active = $2, updated_at = now() where id = $1::uuid`,
		id, active)
	if err != nil {
		return fmt.Errorf("toggle workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("workflow %s", id)
	}
	return nil
}

// Delete удаляет workflow вместе с журналами выполнения (cascade).
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from mf_workflows where id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("workflow %s", id)
	}
	return nil
}

const workflowCols = `id::text, name, description, trigger_type, coalesce(table_id::text, ''), is_active, nodes, edges, created_by, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+workflowCols+` from mf_workflows where id = $1::uuid`, id)
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("workflow %s", id)
	}
	return w, err
}

func (s *Store) List(ctx context.Context) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+workflowCols+` from mf_workflows order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

// ListActive — активные workflow под конкретный триггер и таблицу.
func (s *Store) ListActive(ctx context.Context, trigger, tableID string) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+workflowCols+` from mf_workflows
where is_active and trigger_type = $1 and table_id = $2::uuid`,
		trigger, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(r rowScanner) (*Workflow, error) {
	var w Workflow
	var nodes, edges []byte
	if err := r.Scan(&w.ID, &w.Name, &w.Description, &w.TriggerType, &w.TableID,
		&w.IsActive, &nodes, &edges, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return nil, fmt.Errorf("workflow %s nodes: %w", w.ID, err)
	}
	if err := json.Unmarshal(edges, &w.Edges); err != nil {
		return nil, fmt.Errorf("workflow %s edges: %w", w.ID, err)
	}
	return &w, nil
}

func collectWorkflows(rows *sql.Rows) ([]*Workflow, error) {
	out := []*Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func marshalGraph(w *Workflow) ([]byte, []byte, error) {
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	nodes, err := json.Marshal(w.Nodes)
	if err != nil {
		return nil, nil, err
	}
	edges, err := json.Marshal(w.Edges)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// SaveExecution пишет итог прогона. Ошибка записи журнала не валит прогон.
func (s *Store) SaveExecution(ctx context.Context, ex *Execution) error {
	logs, err := json.Marshal(ex.Logs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
insert into mf_workflow_executions (id, workflow_id, status, logs, completed_at)
values ($1, $2::uuid, $3, $4, $5)`,
		ex.ID, ex.WorkflowID, ex.Status, logs, ex.CompletedAt)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// ListExecutions — журналы прогонов workflow, новые первыми.
func (s *Store) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*Execution, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
select id, workflow_id::text, status, logs, completed_at
from mf_workflow_executions
where workflow_id = $1::uuid
order by completed_at desc, id desc
limit $2`, workflowID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Execution{}
	for rows.Next() {
		var ex Execution
		var logs []byte
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &ex.Status, &logs, &ex.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(logs, &ex.Logs); err != nil {
			return nil, fmt.Errorf("execution %s logs: %w", ex.ID, err)
		}
		out = append(out, &ex)
	}
	return out, rows.Err()
}
