// Package leads provides the lead qualification bounded context module.
// This file wires the pipeline stages, the follow-up scheduler and the HTTP
// handler from configuration.
package leads

import (
	"context"
	"errors"
	"fmt"

	"smartsales_backend/internal/events"
	apphttp "smartsales_backend/internal/http"
	"smartsales_backend/internal/leadenrichment"
	"smartsales_backend/internal/leads/handler"
	"smartsales_backend/internal/leads/outreach"
	"smartsales_backend/internal/leads/policy"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/internal/leads/service"
	"smartsales_backend/internal/scheduler"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/validator"
)

// Config combines the config interfaces the leads module reads.
type Config interface {
	config.PipelineConfig
	config.EnrichmentConfig
	config.SchedulerConfig
	config.OutreachConfig
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	service      *service.Service
	orchestrator *service.Orchestrator
	store        *repository.MemoryStore
	history      repository.HistoryLog
	followups    *scheduler.Service
	policies     *policy.Holder

	worker     *scheduler.Worker
	sweeper    *scheduler.Sweeper
	policyFile string
	closers    []func() error

	val *validator.Validator
	log *logger.Logger
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(cfg Config, history repository.HistoryLog, eventBus events.Bus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	pol := policy.Default()
	if file := cfg.GetScoringPolicyFile(); file != "" {
		loaded, err := policy.Load(file, val)
		if err != nil {
			return nil, fmt.Errorf("load scoring policy: %w", err)
		}
		pol = loaded
	}
	policies := policy.NewHolder(pol)

	m := &Module{
		store:      repository.NewMemoryStore(),
		history:    history,
		policies:   policies,
		policyFile: cfg.GetScoringPolicyFile(),
		val:        val,
		log:        log,
	}

	dispatcher, err := m.initDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	m.followups = scheduler.New(m.store, history, eventBus, dispatcher, log)

	if cfg.IsAsynqEnabled() {
		worker, err := scheduler.NewWorker(cfg, m.followups, log)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("init follow-up worker: %w", err)
		}
		m.worker = worker
	}

	sweeper, err := scheduler.NewSweeper(cfg.GetFollowUpSweepSpec(), m.followups, log)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.sweeper = sweeper

	enrichment := leadenrichment.NewModule(cfg, log)
	m.orchestrator = service.NewOrchestrator(service.Deps{
		Enricher:  enrichment.Service(),
		Store:     m.store,
		History:   history,
		Scheduler: m.followups,
		Drafter:   outreach.NewDrafter(cfg.GetOutreachSenderName()),
		Policies:  policies,
		Validator: val,
		Bus:       eventBus,
		Log:       log,
		Workers:   cfg.GetPipelineWorkers(),
	})

	m.service = service.New(m.orchestrator, m.store, history, m.followups)
	exporter := outreach.NewExporter(cfg.GetOutreachSenderName(), cfg.GetOutreachFromAddress())
	m.handler = handler.New(m.service, exporter, val)

	return m, nil
}

func (m *Module) initDispatcher(cfg config.SchedulerConfig) (scheduler.Dispatcher, error) {
	if !cfg.IsAsynqEnabled() {
		m.log.Info("REDIS_URL not configured; follow-ups use in-process timers")
		return scheduler.NewLocalDispatcher(), nil
	}

	client, err := scheduler.NewClient(cfg, m.log)
	if err != nil {
		return nil, fmt.Errorf("init follow-up dispatcher: %w", err)
	}
	m.closers = append(m.closers, client.Close)
	return client, nil
}

// Start runs the background parts of the module until ctx is done: the
// asynq worker, the overdue sweep and the policy file watcher.
func (m *Module) Start(ctx context.Context) error {
	if m.policyFile != "" {
		if _, err := m.policies.Watch(ctx, m.policyFile, m.val, m.log); err != nil {
			return fmt.Errorf("watch scoring policy: %w", err)
		}
	}
	if m.worker != nil {
		go m.worker.Run(ctx)
	}
	go m.sweeper.Run(ctx)
	return nil
}

// Close releases the dispatcher connections.
func (m *Module) Close() error {
	var errs []error
	for _, closeFn := range m.closers {
		errs = append(errs, closeFn())
	}
	m.closers = nil
	return errors.Join(errs...)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Orchestrator returns the batch pipeline for non-HTTP callers.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orchestrator
}

// Store returns the record store.
func (m *Module) Store() repository.RecordStore {
	return m.store
}

// History returns the history log.
func (m *Module) History() repository.HistoryLog {
	return m.history
}

// Policies returns the holder of the active scoring policy.
func (m *Module) Policies() *policy.Holder {
	return m.policies
}

// FollowUps returns the follow-up scheduler.
func (m *Module) FollowUps() *scheduler.Service {
	return m.followups
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"), ctx.Protected.Group("/qualification"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
