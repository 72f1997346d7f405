package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mapform/internal/logger"
	"mapform/internal/record"
)

// Dispatcher принимает события записей и раздаёт прогоны подходящих workflow
// пулу воркеров. Очереди ограничены: при переполнении событие отбрасывается
// с предупреждением, запись-источник от этого не страдает.
type Dispatcher struct {
	store   *Store
	engine  *Engine
	log     *logger.Logger
	workers int

	events chan record.Event
	runs   chan run

	cancel context.CancelFunc
	eg     *errgroup.Group
}

type run struct {
	workflow *Workflow
	trigger  map[string]any
}

func NewDispatcher(store *Store, engine *Engine, workers, queueSize int, log *logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		store:   store,
		engine:  engine,
		log:     log.With("component", "workflow-dispatcher"),
		workers: workers,
		events:  make(chan record.Event, queueSize),
		runs:    make(chan run, queueSize),
	}
}

// Notify — реализация record.Notifier. Не блокирует вызывающего: полная
// очередь роняет событие, не запись.
func (d *Dispatcher) Notify(ev record.Event) {
	select {
	case d.events <- ev:
	default:
		d.log.Warn("event queue full, dropping event",
			"type", string(ev.Type), "table", ev.TableName)
	}
}

// Start запускает маршрутизатор и пул воркеров.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.eg, ctx = errgroup.WithContext(ctx)

	d.eg.Go(func() error { return d.route(ctx) })
	for i := 0; i < d.workers; i++ {
		d.eg.Go(func() error { return d.work(ctx) })
	}
	d.log.Info("dispatcher started", "workers", d.workers)
}

// Stop останавливает приём и дожидается воркеров.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.eg != nil {
		_ = d.eg.Wait()
	}
}

// route разворачивает событие в прогоны всех активных workflow, подписанных
// на этот триггер и таблицу.
func (d *Dispatcher) route(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			trigger, ok := triggerFor(ev.Type)
			if !ok {
				continue
			}
			workflows, err := d.store.ListActive(ctx, trigger, ev.TableID)
			if err != nil {
				d.log.Error("list active workflows", "trigger", trigger, "error", err)
				continue
			}
			for _, w := range workflows {
				select {
				case d.runs <- run{workflow: w, trigger: ev.Record}:
				default:
					d.log.Warn("run queue full, dropping run",
						"workflow", w.ID, "table", ev.TableName)
				}
			}
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-d.runs:
			d.engine.Run(ctx, r.workflow, r.trigger)
		}
	}
}

func triggerFor(t record.EventType) (string, bool) {
	switch t {
	case record.EventRecordCreated:
		return TriggerRecordCreated, true
	case record.EventRecordUpdated:
		return TriggerRecordUpdated, true
	}
	return "", false
}

// RunManual выполняет workflow синхронно по запросу, минуя очереди.
// Доступен и для MANUAL-триггеров, и для отладки событийных графов.
func (d *Dispatcher) RunManual(ctx context.Context, workflowID string, payload map[string]any) (*Execution, error) {
	w, err := d.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return d.engine.Run(ctx, w, payload), nil
}
