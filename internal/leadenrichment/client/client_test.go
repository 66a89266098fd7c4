package client

import (
	"context"
	"errors"
	"testing"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/logger"
)

func TestLookupIsDeterministic(t *testing.T) {
	c := New(logger.Discard(), nil)
	req := LookupRequest{CompanyName: "AcmePay", Website: "https://www.AcmePay.com/", Notes: "Series A"}

	first, err := c.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	second, _ := c.Lookup(context.Background(), req)
	if *first != *second {
		t.Fatalf("expected identical profiles, got %+v and %+v", first, second)
	}

	if first.Domain != "acmepay.com" || !first.DomainValid {
		t.Fatalf("unexpected domain result %+v", first)
	}
	if first.FundingStage != domain.FundingSeriesA || first.EmployeeEstimate != 75 {
		t.Fatalf("unexpected funding result %+v", first)
	}
	if first.Industry != "FinTech" || first.TechStack != "Node.js" {
		t.Fatalf("unexpected company result %+v", first)
	}
}

func TestValidDomain(t *testing.T) {
	cases := map[string]bool{
		"acmepay.com":      true,
		"shopright.pk":     true,
		"example.co.uk":    true,
		"":                 false,
		"localhost":        false,
		"com":              false,
		"co.uk":            false,
		"bad_host.com":     false,
		"acme.notarealtld": false,
	}
	for host, want := range cases {
		if got := validDomain(host); got != want {
			t.Fatalf("validDomain(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestLookupConsumesFailureBudget(t *testing.T) {
	c := New(logger.Discard(), map[string]int{"ShopRight.pk": 2})
	req := LookupRequest{CompanyName: "ShopRight", Website: "shopright.pk"}

	for i := range 2 {
		if _, err := c.Lookup(context.Background(), req); !errors.Is(err, ErrTransient) {
			t.Fatalf("lookup %d: expected transient error, got %v", i+1, err)
		}
	}
	profile, err := c.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("expected recovery after budget, got %v", err)
	}
	if profile.Industry != "E-commerce" || profile.EmployeeEstimate != 12 {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
