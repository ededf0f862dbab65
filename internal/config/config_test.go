package config

import (
	"testing"
	"time"

	"promptdeck/internal/models"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error when DATABASE_URL is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/promptdeck_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %s, want 8080", cfg.HTTPPort)
	}
	if cfg.Provider.RequestTimeout != 30*time.Second {
		t.Errorf("Provider.RequestTimeout = %v, want 30s", cfg.Provider.RequestTimeout)
	}
	if cfg.Guard.UpgradeCTAURL != "/dashboard/billing" {
		t.Errorf("Guard.UpgradeCTAURL = %s", cfg.Guard.UpgradeCTAURL)
	}
	if cfg.Archive.Enabled {
		t.Error("Archive should be disabled by default")
	}
}

func TestPlanLimits_Defaults(t *testing.T) {
	cfg := &Config{}
	limits := cfg.PlanLimits()

	free := limits[models.PlanFree]
	if free.RequestsPerMonth == nil || *free.RequestsPerMonth != 100 {
		t.Errorf("free requests limit = %v, want 100", free.RequestsPerMonth)
	}

	agency := limits[models.PlanAgency]
	if agency.RequestsPerMonth != nil || agency.TokensPerMonth != nil || agency.CostUSDPerMonth != nil {
		t.Errorf("agency plan must stay unlimited, got %+v", agency)
	}
}

func TestPlanLimits_EnvOverride(t *testing.T) {
	t.Setenv("PLAN_FREE_REQUESTS_PER_MONTH", "250")
	t.Setenv("PLAN_STARTER_COST_USD_PER_MONTH", "150.5")
	t.Setenv("PLAN_FREE_TOKENS_PER_MONTH", "not-a-number")

	cfg := &Config{}
	limits := cfg.PlanLimits()

	free := limits[models.PlanFree]
	if free.RequestsPerMonth == nil || *free.RequestsPerMonth != 250 {
		t.Errorf("free requests override = %v, want 250", free.RequestsPerMonth)
	}
	if free.TokensPerMonth == nil || *free.TokensPerMonth != 200_000 {
		t.Errorf("invalid override must keep default, got %v", free.TokensPerMonth)
	}

	starter := limits[models.PlanStarter]
	if starter.CostUSDPerMonth == nil || *starter.CostUSDPerMonth != 150.5 {
		t.Errorf("starter cost override = %v, want 150.5", starter.CostUSDPerMonth)
	}
}
