package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"smartsales_backend/internal/leadenrichment/client"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/retry"
)

type countingDirectory struct {
	inner Directory
	calls atomic.Int32
}

func (d *countingDirectory) Lookup(ctx context.Context, req client.LookupRequest) (*client.CompanyProfile, error) {
	d.calls.Add(1)
	return d.inner.Lookup(ctx, req)
}

var acmeRow = domain.InputRow{
	ID:           "L1",
	CompanyName:  "AcmePay",
	ContactName:  "Ali",
	ContactEmail: "ali@acmepay.com",
	Website:      "acmepay.com",
	Notes:        "Series A",
}

func newService(failures map[string]int, attempts int) (*Service, *countingDirectory) {
	dir := &countingDirectory{inner: client.New(logger.Discard(), failures)}
	return New(dir, retry.NewPolicy(attempts, 0, 0), logger.Discard()), dir
}

func TestEnrichRecoversFromTransientFailures(t *testing.T) {
	svc, dir := newService(map[string]int{"acmepay.com": 2}, 3)

	got, err := svc.Enrich(context.Background(), acmeRow)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Status != domain.EnrichmentComplete || got.Attempts != 3 {
		t.Fatalf("expected complete after 3 attempts, got %+v", got)
	}
	if got.Signals[domain.SignalFundingStage] != domain.FundingSeriesA {
		t.Fatalf("expected funding signal, got %v", got.Signals)
	}
	if dir.calls.Load() != 3 {
		t.Fatalf("expected 3 lookups, got %d", dir.calls.Load())
	}
}

func TestEnrichMarksIncompleteWhenExhausted(t *testing.T) {
	svc, dir := newService(map[string]int{"acmepay.com": 10}, 3)

	got, err := svc.Enrich(context.Background(), acmeRow)
	if !apperr.Is(err, apperr.KindEnrichmentExhausted) {
		t.Fatalf("expected enrichment exhausted, got %v", err)
	}
	if !errors.Is(err, client.ErrTransient) {
		t.Fatalf("expected the last lookup error to be wrapped, got %v", err)
	}
	if got.Status != domain.EnrichmentIncomplete || got.Attempts != 3 || len(got.Signals) != 0 {
		t.Fatalf("expected incomplete marker, got %+v", got)
	}
	if dir.calls.Load() != 3 {
		t.Fatalf("expected retry bound of 3 lookups, got %d", dir.calls.Load())
	}
}

func TestEnrichServesRepeatsFromCache(t *testing.T) {
	svc, dir := newService(nil, 3)

	first, err := svc.Enrich(context.Background(), acmeRow)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	first.Signals[domain.SignalIndustry] = "mutated"

	second, err := svc.Enrich(context.Background(), acmeRow)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if dir.calls.Load() != 1 {
		t.Fatalf("expected a single lookup, got %d", dir.calls.Load())
	}
	if second.Signals[domain.SignalIndustry] != "FinTech" {
		t.Fatalf("cached signals were aliased: %v", second.Signals)
	}
}

func TestEnrichCacheExpires(t *testing.T) {
	dir := &countingDirectory{inner: client.New(logger.Discard(), nil)}
	svc := New(dir, retry.NewPolicy(1, 0, 0), logger.Discard(), WithCacheTTL(time.Millisecond))

	if _, err := svc.Enrich(context.Background(), acmeRow); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Enrich(context.Background(), acmeRow); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if dir.calls.Load() != 2 {
		t.Fatalf("expired entry should trigger a new lookup, got %d calls", dir.calls.Load())
	}

	keep := New(dir, retry.NewPolicy(1, 0, 0), logger.Discard(), WithCacheTTL(0))
	if keep.cacheTTL != cacheTTL {
		t.Fatalf("zero ttl should keep the default, got %v", keep.cacheTTL)
	}
}

func TestEnrichStopsOnCancelledContext(t *testing.T) {
	svc, _ := newService(nil, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Enrich(ctx, acmeRow); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
