package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mapform/internal/api"
	"mapform/internal/config"
	"mapform/internal/logger"
	"mapform/internal/pg"
	"mapform/internal/record"
	"mapform/internal/reference"
	"mapform/internal/schema"
	"mapform/internal/workflow"
)

func main() {
	cfg := config.LoadWithPath("config.yaml")

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.DBURL == "" {
		log.Fatal("database url is required (-db or MAPFORM_DB_URL)")
	}

	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatal("connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := schema.NewCatalog(db, log)
	provisioner := pg.NewProvisioner(db, catalog, log)
	if err := provisioner.EnsureBase(ctx); err != nil {
		log.Fatal("provision base schema", "error", err)
	}

	// справочники опций (опционально)
	enums := map[string]reference.Directory{}
	if cfg.EnumsDir != "" {
		if loaded, err := reference.LoadCatalog(cfg.EnumsDir); err == nil {
			enums = loaded
			log.Info("option catalogs loaded", "count", len(enums))
		} else if !os.IsNotExist(err) {
			log.Fatal("load option catalogs", "dir", cfg.EnumsDir, "error", err)
		}
	}

	records := record.NewService(db, catalog, enums, log)
	if err := records.Ensure(ctx); err != nil {
		log.Fatal("provision history table", "error", err)
	}

	// стартовые таблицы из YAML (опционально)
	if cfg.SeedsDir != "" {
		if err := provisioner.SeedFromDir(ctx, cfg.SeedsDir); err != nil {
			log.Fatal("seed tables", "dir", cfg.SeedsDir, "error", err)
		}
	}

	workflows := workflow.NewStore(db, log)
	if err := workflows.Ensure(ctx); err != nil {
		log.Fatal("provision workflow tables", "error", err)
	}
	engine := workflow.NewEngine(workflows, records, cfg.ActionQueryLimit, log)
	dispatcher := workflow.NewDispatcher(workflows, engine, cfg.WorkflowWorkers, cfg.WorkflowQueueSize, log)
	records.SetNotifier(dispatcher)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	router := api.NewRouter(api.Deps{
		Catalog:     catalog,
		Provisioner: provisioner,
		Records:     records,
		Workflows:   workflows,
		Dispatcher:  dispatcher,
		Enums:       enums,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", "error", err)
	}
}
