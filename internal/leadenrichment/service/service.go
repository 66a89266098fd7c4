// Package service provides the enrichment stage: directory lookups with a
// bounded retry policy, throttling and a result cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"smartsales_backend/internal/leadenrichment/client"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/retry"

	"golang.org/x/time/rate"
)

const (
	cacheTTL = 24 * time.Hour
)

// Directory looks up company data for a lead.
type Directory interface {
	Lookup(ctx context.Context, req client.LookupRequest) (*client.CompanyProfile, error)
}

type cacheEntry struct {
	signals   map[string]string
	expiresAt time.Time
}

// Service enriches leads. Results are cached by input fingerprint, so
// reprocessing an unchanged lead returns the same signals without a lookup.
type Service struct {
	directory Directory
	policy    retry.Policy
	limiter   *rate.Limiter
	log       *logger.Logger
	cache     map[string]cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithRateLimit caps directory lookups per second. Zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(s *Service) {
		if perSecond > 0 {
			burst := max(int(perSecond), 1)
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCacheTTL overrides how long complete results are reused. Zero or less
// keeps the default.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// New creates an enrichment service.
func New(directory Directory, policy retry.Policy, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		policy:    policy,
		log:       log,
		cache:     make(map[string]cacheEntry),
		cacheTTL:  cacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enrich derives company signals for a lead. When the directory keeps failing
// past the retry bound it returns an incomplete Enrichment together with a
// KindEnrichmentExhausted error; the Enrichment is usable either way. Only a
// cancelled context yields an error without a usable result.
func (s *Service) Enrich(ctx context.Context, row domain.InputRow) (domain.Enrichment, error) {
	row = row.Normalized()
	key := row.Fingerprint()

	if cached, ok := s.getFromCache(key); ok {
		return domain.Enrichment{Status: domain.EnrichmentComplete, Signals: cached}, nil
	}

	req := client.LookupRequest{CompanyName: row.CompanyName, Website: row.Website, Notes: row.Notes}
	var profile *client.CompanyProfile
	attempts, err := s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		p, err := s.directory.Lookup(ctx, req)
		if err != nil {
			if errors.Is(err, client.ErrTransient) {
				s.log.Warn("enrichment lookup failed, retrying", "leadId", row.ID, "attempt", attempt, "error", err)
				return retry.Retryable(err)
			}
			return err
		}
		profile = p
		return nil
	})

	switch {
	case err == nil:
		signals := profile.Signals()
		s.setCache(key, signals)
		return domain.Enrichment{Status: domain.EnrichmentComplete, Signals: maps.Clone(signals), Attempts: attempts}, nil
	case ctx.Err() != nil:
		return domain.Enrichment{}, ctx.Err()
	case errors.Is(err, retry.ErrExhausted):
		incomplete := domain.Enrichment{Status: domain.EnrichmentIncomplete, Attempts: attempts, Reason: err.Error()}
		return incomplete, apperr.EnrichmentExhausted(fmt.Sprintf("enrichment gave up after %d attempts", attempts), err)
	default:
		incomplete := domain.Enrichment{Status: domain.EnrichmentIncomplete, Attempts: attempts, Reason: err.Error()}
		return incomplete, apperr.Wrap(apperr.KindInternal, "enrichment lookup failed", err)
	}
}

func (s *Service) getFromCache(key string) (map[string]string, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	entry, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return maps.Clone(entry.signals), true
}

func (s *Service) setCache(key string, signals map[string]string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = cacheEntry{
		signals:   maps.Clone(signals),
		expiresAt: time.Now().Add(s.cacheTTL),
	}
}
