// Package client provides the company directory used for lead enrichment.
// The directory is simulated: every answer is derived from the lead's own
// fields, so lookups are deterministic and need no network access.
package client

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/logger"

	"golang.org/x/net/publicsuffix"
)

// ErrTransient is returned for a simulated outage. Callers may retry it.
var ErrTransient = errors.New("company directory temporarily unavailable")

var hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// LookupRequest carries the lead fields a lookup may use.
type LookupRequest struct {
	CompanyName string
	Website     string
	Notes       string
}

// CompanyProfile is what the directory knows about a company.
type CompanyProfile struct {
	Domain           string
	DomainValid      bool
	FundingStage     string
	Industry         string
	EmployeeEstimate int
	TechStack        string
	RecentNews       string
}

// Signals flattens the profile into enrichment signal values.
func (p CompanyProfile) Signals() map[string]string {
	return map[string]string{
		domain.SignalDomain:           p.Domain,
		domain.SignalDomainValid:      strconv.FormatBool(p.DomainValid),
		domain.SignalFundingStage:     p.FundingStage,
		domain.SignalIndustry:         p.Industry,
		domain.SignalEmployeeEstimate: strconv.Itoa(p.EmployeeEstimate),
		domain.SignalTechStack:        p.TechStack,
		domain.SignalRecentNews:       p.RecentNews,
	}
}

// Client is the simulated directory. Outages are injected per domain: a
// domain with a budget of n fails its next n lookups with ErrTransient.
type Client struct {
	log *logger.Logger

	mu       sync.Mutex
	failures map[string]int
}

// New creates a directory client with an optional outage budget per domain.
func New(log *logger.Logger, failures map[string]int) *Client {
	budget := make(map[string]int, len(failures))
	for d, n := range failures {
		budget[strings.ToLower(strings.TrimSpace(d))] = n
	}
	return &Client{log: log, failures: budget}
}

// Lookup returns the company profile for the request.
func (c *Client) Lookup(ctx context.Context, req LookupRequest) (*CompanyProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host := domain.NormalizeDomain(req.Website)
	if c.consumeFailure(host) {
		c.log.Debug("simulated directory outage", "domain", host)
		return nil, ErrTransient
	}

	stage, _ := domain.DetectFundingStage(req.Notes)
	return &CompanyProfile{
		Domain:           host,
		DomainValid:      validDomain(host),
		FundingStage:     stage,
		Industry:         industryFor(req.CompanyName),
		EmployeeEstimate: domain.EmployeeEstimate(stage),
		TechStack:        techStackFor(req.CompanyName),
		RecentNews:       strings.TrimSpace(req.Notes),
	}, nil
}

func (c *Client) consumeFailure(host string) bool {
	if host == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures[host] <= 0 {
		return false
	}
	c.failures[host]--
	return true
}

// validDomain accepts hostnames whose public suffix is ICANN-managed and that
// have a registrable label in front of it.
func validDomain(host string) bool {
	if host == "" || !hostnamePattern.MatchString(host) {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return false
	}
	_, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil
}

func industryFor(company string) string {
	name := strings.ToLower(company)
	switch {
	case containsAny(name, "fin", "pay", "bank", "capital"):
		return "FinTech"
	case containsAny(name, "shop", "store", "mart", "cart"):
		return "E-commerce"
	case containsAny(name, "data", "analytics"):
		return "Data"
	case containsAny(name, "health", "med", "care"):
		return "HealthTech"
	default:
		return "SaaS"
	}
}

func techStackFor(company string) string {
	if strings.Contains(strings.ToLower(company), "data") {
		return "Python, Postgres"
	}
	return "Node.js"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
