package schema

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

// Catalog хранит метаданные таблиц/полей в системных таблицах mf_tables/mf_fields.
// Физические таблицы им не принадлежат — ими занимается pg.Provisioner.
type Catalog struct {
	db  *sql.DB
	log *logger.Logger
}

func NewCatalog(db *sql.DB, log *logger.Logger) *Catalog {
	return &Catalog{db: db, log: log.With("component", "catalog")}
}

const catalogDDL = `
create table if not exists mf_tables (
  id uuid primary key,
  name text not null unique,
  display_name text not null default '',
  description text not null default '',
  icon text not null default '',
  created_by text not null default 'system',
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
create table if not exists mf_fields (
  id uuid primary key,
  table_id uuid not null references mf_tables(id) on delete cascade,
  name text not null,
  display_name text not null default '',
  data_type text not null,
  is_required boolean not null default false,
  is_unique boolean not null default false,
  is_timeseries boolean not null default false,
  default_value text not null default '',
  attrs jsonb not null default '{}'::jsonb,
  ord integer not null default 0,
  unique (table_id, name)
);
`

func (c *Catalog) EnsureSystemTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, catalogDDL); err != nil {
		return fmt.Errorf("ensure catalog tables: %w", err)
	}
	return nil
}

// attrs — типо-специфичные атрибуты поля, в metadata лежат одним jsonb.
type fieldAttrs struct {
	MaxLength  int            `json:"maxLength,omitempty"`
	Numeric    *NumericAttrs  `json:"numeric,omitempty"`
	Geometry   *GeometryAttrs `json:"geometry,omitempty"`
	Sensor     *SensorAttrs   `json:"sensor,omitempty"`
	Validation *Validation    `json:"validation,omitempty"`
	Relation   *RelationAttrs `json:"relation,omitempty"`
}

func packAttrs(f *FieldDefinition) ([]byte, error) {
	return json.Marshal(fieldAttrs{
		MaxLength:  f.MaxLength,
		Numeric:    f.Numeric,
		Geometry:   f.Geometry,
		Sensor:     f.Sensor,
		Validation: f.Validation,
		Relation:   f.Relation,
	})
}

func unpackAttrs(raw []byte, f *FieldDefinition) error {
	var a fieldAttrs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
	}
	f.MaxLength = a.MaxLength
	f.Numeric = a.Numeric
	f.Geometry = a.Geometry
	f.Sensor = a.Sensor
	f.Validation = a.Validation
	f.Relation = a.Relation
	return nil
}

// Insert пишет определение и все его поля одной транзакцией.
func (c *Catalog) Insert(ctx context.Context, def *TableDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	if def.CreatedBy == "" {
		def.CreatedBy = "system"
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`insert into mf_tables (id, name, display_name, description, icon, created_by, created_at, updated_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8)`,
		def.ID, def.Name, def.DisplayName, def.Description, def.Icon, def.CreatedBy, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert table metadata: %w", err)
	}

	for i := range def.Fields {
		if err := insertField(ctx, tx, def.ID, &def.Fields[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertField(ctx context.Context, tx *sql.Tx, tableID string, f *FieldDefinition) error {
	attrs, err := packAttrs(f)
	if err != nil {
		return fmt.Errorf("pack attrs for %q: %w", f.Name, err)
	}
	_, err = tx.ExecContext(ctx,
		`insert into mf_fields (id, table_id, name, display_name, data_type,
		   is_required, is_unique, is_timeseries, default_value, attrs, ord)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		uuid.NewString(), tableID, f.Name, f.DisplayName, string(f.DataType),
		f.IsRequired, f.IsUnique, f.IsTimeseries, f.DefaultValue, attrs, f.Order)
	if err != nil {
		return fmt.Errorf("insert field metadata %q: %w", f.Name, err)
	}
	return nil
}

// AddField добавляет одно поле к существующему определению.
func (c *Catalog) AddField(ctx context.Context, tableID string, f *FieldDefinition) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertField(ctx, tx, tableID, f); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `update mf_tables set updated_at = now() where id = $1`, tableID); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Catalog) Delete(ctx context.Context, tableID string) error {
	res, err := c.db.ExecContext(ctx, `delete from mf_tables where id = $1`, tableID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("table %s", tableID)
	}
	return nil
}

func (c *Catalog) GetByName(ctx context.Context, name string) (*TableDefinition, error) {
	return c.getOne(ctx, `where name = $1`, name)
}

func (c *Catalog) GetByID(ctx context.Context, id string) (*TableDefinition, error) {
	return c.getOne(ctx, `where id = $1`, id)
}

func (c *Catalog) getOne(ctx context.Context, where string, arg any) (*TableDefinition, error) {
	def := &TableDefinition{}
	row := c.db.QueryRowContext(ctx,
		`select id, name, display_name, description, icon, created_by, created_at, updated_at
		 from mf_tables `+where, arg)
	err := row.Scan(&def.ID, &def.Name, &def.DisplayName, &def.Description, &def.Icon,
		&def.CreatedBy, &def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("table %v", arg)
	}
	if err != nil {
		return nil, err
	}
	if def.Fields, err = c.loadFields(ctx, def.ID); err != nil {
		return nil, err
	}
	return def, nil
}

func (c *Catalog) loadFields(ctx context.Context, tableID string) ([]FieldDefinition, error) {
	rows, err := c.db.QueryContext(ctx,
		`select name, display_name, data_type, is_required, is_unique, is_timeseries,
		        default_value, attrs, ord
		 from mf_fields where table_id = $1 order by ord, name`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FieldDefinition
	for rows.Next() {
		var f FieldDefinition
		var dt string
		var attrs []byte
		if err := rows.Scan(&f.Name, &f.DisplayName, &dt, &f.IsRequired, &f.IsUnique,
			&f.IsTimeseries, &f.DefaultValue, &attrs, &f.Order); err != nil {
			return nil, err
		}
		f.DataType = DataType(dt)
		if err := unpackAttrs(attrs, &f); err != nil {
			return nil, fmt.Errorf("unpack attrs for %q: %w", f.Name, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// List возвращает все определения с полями.
func (c *Catalog) List(ctx context.Context) ([]*TableDefinition, error) {
	rows, err := c.db.QueryContext(ctx,
		`select id, name, display_name, description, icon, created_by, created_at, updated_at
		 from mf_tables order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TableDefinition
	for rows.Next() {
		def := &TableDefinition{}
		if err := rows.Scan(&def.ID, &def.Name, &def.DisplayName, &def.Description, &def.Icon,
			&def.CreatedBy, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, def := range out {
		if def.Fields, err = c.loadFields(ctx, def.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Catalog) ExistsName(ctx context.Context, name string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `select 1 from mf_tables where name = $1`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
