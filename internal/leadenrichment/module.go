// Package leadenrichment provides the composition root for lead enrichment.
package leadenrichment

import (
	"smartsales_backend/internal/leadenrichment/client"
	"smartsales_backend/internal/leadenrichment/service"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/retry"
)

// Module wires the lead enrichment service.
type Module struct {
	service *service.Service
}

// NewModule creates a new lead enrichment module.
func NewModule(cfg config.EnrichmentConfig, log *logger.Logger) *Module {
	cli := client.New(log, cfg.GetEnrichmentSimulatedFailures())
	policy := retry.NewPolicy(cfg.GetEnrichmentMaxAttempts(), cfg.GetEnrichmentBaseBackoff(), cfg.GetEnrichmentMaxBackoff())
	svc := service.New(cli, policy, log,
		service.WithRateLimit(cfg.GetEnrichmentRateLimit()),
		service.WithCacheTTL(cfg.GetEnrichmentCacheTTL()),
	)
	return &Module{service: svc}
}

// Service returns the enrichment service.
func (m *Module) Service() *service.Service {
	return m.service
}
