package pg

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mapform/internal/apperr"
	"mapform/internal/logger"
	"mapform/internal/schema"
)

// Provisioner сводит вместе каталог метаданных и физические таблицы:
// createTable / addField / deleteTable / repair / seeds.
type Provisioner struct {
	db      *sql.DB
	catalog *schema.Catalog
	log     *logger.Logger
}

func NewProvisioner(db *sql.DB, catalog *schema.Catalog, log *logger.Logger) *Provisioner {
	return &Provisioner{db: db, catalog: catalog, log: log.With("component", "provisioner")}
}

// EnsureBase включает расширения и системные таблицы каталога.
func (p *Provisioner) EnsureBase(ctx context.Context) error {
	base := []string{
		`create extension if not exists postgis;`,
		`create extension if not exists pgcrypto;`, // gen_random_uuid
	}
	if err := Apply(ctx, p.db, p.log, base); err != nil {
		return err
	}
	return p.catalog.EnsureSystemTables(ctx)
}

// CreateTable валидирует определение, создаёт физику и пишет метаданные.
// Падает, если имя уже занято физической таблицей.
func (p *Provisioner) CreateTable(ctx context.Context, def *schema.TableDefinition) (*schema.TableDefinition, error) {
	if issues := schema.Lint(def); len(issues) > 0 {
		return nil, apperr.NewValidation(issues...)
	}
	exists, err := p.catalog.ExistsName(ctx, def.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflictf("table %q already exists", def.Name)
	}
	// ссылки на другие динамические таблицы должны резолвиться
	for i := range def.Fields {
		rel := def.Fields[i].Relation
		if rel == nil {
			continue
		}
		if _, err := p.catalog.GetByName(ctx, rel.Table); err != nil {
			return nil, apperr.NewValidation(apperr.Ferr(apperr.CodeSchemaInvalid, def.Fields[i].Name,
				fmt.Sprintf("relation target table %q does not exist", rel.Table)))
		}
	}

	stmts, err := GenerateTableDDL(def)
	if err != nil {
		return nil, err
	}
	if err := Apply(ctx, p.db, p.log, stmts); err != nil {
		return nil, err
	}
	if err := p.catalog.Insert(ctx, def); err != nil {
		return nil, err
	}
	p.log.Info("table created", "name", def.Name, "fields", len(def.Fields))
	return def, nil
}

// AddField добавляет колонку к существующей таблице (ALTER + метаданные).
func (p *Provisioner) AddField(ctx context.Context, tableID string, f *schema.FieldDefinition) (*schema.TableDefinition, error) {
	def, err := p.catalog.GetByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, dup := def.Field(f.Name); dup {
		return nil, apperr.Conflictf("field %q already exists on table %q", f.Name, def.Name)
	}

	probe := *def
	probe.Fields = append(append([]schema.FieldDefinition{}, def.Fields...), *f)
	if issues := schema.Lint(&probe); len(issues) > 0 {
		return nil, apperr.NewValidation(issues...)
	}

	def.Fields = probe.Fields
	stmts, err := GenerateAddColumnDDL(def, f)
	if err != nil {
		return nil, err
	}
	if err := Apply(ctx, p.db, p.log, stmts); err != nil {
		return nil, err
	}
	if err := p.catalog.AddField(ctx, tableID, f); err != nil {
		return nil, err
	}
	p.log.Info("field added", "table", def.Name, "field", f.Name)
	return def, nil
}

// DeleteTable сносит физическую таблицу, историю и метаданные.
func (p *Provisioner) DeleteTable(ctx context.Context, tableID string) error {
	def, err := p.catalog.GetByID(ctx, tableID)
	if err != nil {
		return err
	}
	stmts, err := GenerateDropDDL(def)
	if err != nil {
		return err
	}
	if err := Apply(ctx, p.db, p.log, stmts); err != nil {
		return err
	}
	if err := p.catalog.Delete(ctx, tableID); err != nil {
		return err
	}
	p.log.Info("table dropped", "name", def.Name)
	return nil
}

// Repair перегенерирует и повторно применяет DDL по всем определениям каталога.
// DDL идемпотентный, так что недостающие объекты досоздаются, живые не трогаются.
func (p *Provisioner) Repair(ctx context.Context) (int, error) {
	defs, err := p.catalog.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		stmts, err := GenerateTableDDL(def)
		if err != nil {
			return 0, fmt.Errorf("repair %q: %w", def.Name, err)
		}
		if err := Apply(ctx, p.db, p.log, stmts); err != nil {
			return 0, fmt.Errorf("repair %q: %w", def.Name, err)
		}
	}
	return len(defs), nil
}

// SeedFromDir читает YAML-описания таблиц из директории и создаёт отсутствующие.
func (p *Provisioner) SeedFromDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		var def schema.TableDefinition
		if err := yaml.Unmarshal(b, &def); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		exists, err := p.catalog.ExistsName(ctx, def.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		def.CreatedBy = "system"
		if _, err := p.CreateTable(ctx, &def); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		p.log.Info("seeded table", "name", def.Name)
	}
	return nil
}
