package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/settlements?parseTime=true")
	unsetEnv(t, "SETTLEMENTS_COMMISSION_RATE")
	unsetEnv(t, "SETTLEMENTS_APPROVAL_POLL_INTERVAL_SECONDS")
	unsetEnv(t, "SETTLEMENTS_APPROVAL_TIMEOUT_MINUTES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Settlements.CommissionRate.StringFixed(2) != "0.20" {
		t.Fatalf("unexpected commission rate: %s", cfg.Settlements.CommissionRate)
	}
	if cfg.Settlements.ApprovalPollInterval != time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.Settlements.ApprovalPollInterval)
	}
	if cfg.Settlements.ApprovalTimeout != 10*time.Minute {
		t.Fatalf("unexpected approval timeout: %v", cfg.Settlements.ApprovalTimeout)
	}
	if cfg.Settlements.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", cfg.Settlements.Currency)
	}
	if cfg.PayPal.Mode != "sandbox" {
		t.Fatalf("unexpected paypal mode: %s", cfg.PayPal.Mode)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/settlements?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "settlements-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "SETTLEMENTS_COMMISSION_RATE", "0.15")
	setEnv(t, "SETTLEMENTS_APPROVAL_POLL_INTERVAL_SECONDS", "2")
	setEnv(t, "SETTLEMENTS_APPROVAL_TIMEOUT_MINUTES", "5")
	setEnv(t, "SETTLEMENTS_PAYOUT_MAX_ATTEMPTS", "3")
	setEnv(t, "SETTLEMENTS_JOB_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "settlements-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.Settlements.CommissionRate.StringFixed(2) != "0.15" {
		t.Fatalf("unexpected commission rate: %s", cfg.Settlements.CommissionRate)
	}
	if cfg.Settlements.ApprovalPollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.Settlements.ApprovalPollInterval)
	}
	if cfg.Settlements.ApprovalTimeout != 5*time.Minute {
		t.Fatalf("unexpected approval timeout: %v", cfg.Settlements.ApprovalTimeout)
	}
	if cfg.Settlements.PayoutMaxAttempts != 3 {
		t.Fatalf("unexpected payout max attempts: %d", cfg.Settlements.PayoutMaxAttempts)
	}
	if cfg.Settlements.JobBatchSize != 25 {
		t.Fatalf("unexpected job batch size: %d", cfg.Settlements.JobBatchSize)
	}
}

func TestLoadRejectsInvalidCommissionRate(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/settlements?parseTime=true")

	setEnv(t, "SETTLEMENTS_COMMISSION_RATE", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-decimal commission rate")
	}

	setEnv(t, "SETTLEMENTS_COMMISSION_RATE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range commission rate")
	}
}
