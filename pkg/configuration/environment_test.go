package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "LEADFLOW_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "leads")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("LEADFLOW_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("LEADFLOW_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestParse_Defaults(t *testing.T) {
	c := &Configuration{}
	if err := c.parse(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.SMS.DailyLimit != 3 {
		t.Fatalf("expected SMS daily limit 3, got %d", c.SMS.DailyLimit)
	}
	if c.SMS.Timeout != 10*time.Second {
		t.Fatalf("expected SMS timeout 10s, got %s", c.SMS.Timeout)
	}
	if c.Redis.ConversationTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day TTL, got %s", c.Redis.ConversationTTL)
	}
	if c.QuietHours.Start != 21 || c.QuietHours.End != 8 {
		t.Fatalf("unexpected quiet hours %d-%d", c.QuietHours.Start, c.QuietHours.End)
	}
	if c.SocketAddress != "localhost:3200" {
		t.Fatalf("unexpected socket address %q", c.SocketAddress)
	}
}

func TestParse_RejectsInvalidQuietHours(t *testing.T) {
	t.Setenv("QUIET_HOURS_START", "25")

	c := &Configuration{}
	if err := c.parse(); err == nil {
		t.Fatal("expected quiet hours validation error")
	}
}

func TestParse_RejectsInvertedScoringThresholds(t *testing.T) {
	t.Setenv("HOT_THRESHOLD_MONTHS", "9")
	t.Setenv("WARM_THRESHOLD_MONTHS", "6")

	c := &Configuration{}
	if err := c.parse(); err == nil {
		t.Fatal("expected scoring validation error")
	}
}

func TestSMSOptions_ValidateSweepInterval(t *testing.T) {
	opts := SMSOptions{Timeout: 10 * time.Second, LimiterStorage: "memory", LimiterSweep: time.Hour}
	if err := opts.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sweep := range []time.Duration{0, -time.Minute} {
		opts.LimiterSweep = sweep
		if err := opts.Validate(); err == nil {
			t.Fatalf("expected error for sweep interval %s", sweep)
		}
	}
}

func TestParse_RejectsZeroSweepInterval(t *testing.T) {
	t.Setenv("SMS_LIMITER_SWEEP_INTERVAL", "0s")

	c := &Configuration{}
	if err := c.parse(); err == nil {
		t.Fatal("expected sweep interval validation error")
	}
}

func TestRateLimitOptions_Validate(t *testing.T) {
	opts := RateLimitOptions{GlobalRPS: 10, Storage: "redis"}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error when redis storage has no URL")
	}
	opts.RedisURL = "localhost:6379"
	if err := opts.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrigins(t *testing.T) {
	c := &Configuration{AllowedOrigins: "http://a.test, ,http://b.test"}
	got := c.Origins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
