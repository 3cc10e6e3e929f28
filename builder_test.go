package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildRequiresRedis(t *testing.T) {
	cfg := testConfig(t)
	_, err := New().
		WithConfig(&cfg).
		WithProvider(newStubProvider()).
		Build()
	if !errors.Is(err, ErrNilRedis) {
		t.Fatalf("expected ErrNilRedis, got %v", err)
	}
}

func TestBuildRequiresProvider(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig(t)
	_, err := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		Build()
	if !errors.Is(err, ErrNilProvider) {
		t.Fatalf("expected ErrNilProvider, got %v", err)
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	_, err := New().
		WithConfig(nil).
		WithRedis(rdb).
		WithProvider(newStubProvider()).
		Build()
	if !errors.Is(err, ErrNilConfig) {
		t.Fatalf("expected ErrNilConfig, got %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	// DefaultConfig without key material must not build.
	cfg := DefaultConfig()
	_, err := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(newStubProvider()).
		Build()
	if err == nil {
		t.Fatal("expected validation error for missing keys")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig(t)
	b := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(newStubProvider())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildClonesCallerConfig(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig(t)
	engine, err := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	// Mutations after Build must not reach the running engine, key bytes
	// included.
	cfg.Login.MaxAttempts = 999
	for i := range cfg.Token.PrivateKey {
		cfg.Token.PrivateKey[i] = 0
	}

	if got := engine.SecurityReport().MaxLoginAttempts; got != DefaultConfig().Login.MaxAttempts {
		t.Fatalf("engine saw post-build mutation, MaxLoginAttempts=%d", got)
	}

	pair, err := engine.Login(context.Background(), "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed after caller zeroed their key copy: %v", err)
	}
	if _, err := engine.VerifyAccess(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("VerifyAccess failed after caller zeroed their key copy: %v", err)
	}
}

func TestBuilderMetricsToggles(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	engine, err := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(newStubProvider()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.metrics.Enabled() || !engine.metrics.LatencyEnabled() {
		t.Fatal("builder toggles should enable metrics and latency histograms")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Login.MaxAttempts = 7
	cfg.Login.Window = 10 * time.Minute
	cfg.Refresh.EnableThrottle = true
	cfg.Refresh.MaxPerWindow = 5
	cfg.Refresh.ThrottleWindow = time.Minute

	engine, _, done := newTestEngine(t, cfg, newStubProvider())
	defer done()

	report := engine.SecurityReport()
	if report.SigningAlgorithm != "ed25519" {
		t.Errorf("SigningAlgorithm = %q", report.SigningAlgorithm)
	}
	if report.AccessTTL != cfg.Token.AccessTTL || report.RefreshTTL != cfg.Token.RefreshTTL {
		t.Errorf("ttls = %v/%v", report.AccessTTL, report.RefreshTTL)
	}
	if report.AbsoluteLineageLifetime != cfg.Refresh.AbsoluteLineageLifetime {
		t.Errorf("AbsoluteLineageLifetime = %v", report.AbsoluteLineageLifetime)
	}
	if report.Argon2.Memory != cfg.Password.Memory || report.Argon2.Time != cfg.Password.Time {
		t.Errorf("argon2 = %+v", report.Argon2)
	}
	if report.MaxLoginAttempts != 7 || report.LoginWindow != 10*time.Minute {
		t.Errorf("login = %d/%v", report.MaxLoginAttempts, report.LoginWindow)
	}
	if !report.RefreshThrottleEnabled {
		t.Error("RefreshThrottleEnabled should be true")
	}
	if !report.ReuseDetectionEnabled {
		t.Error("reuse detection is always on")
	}
	if report.AuditEnabled {
		t.Error("audit should be off in this config")
	}
	if !report.MetricsEnabled {
		t.Error("metrics should be on in this config")
	}

	var nilEngine *Engine
	if got := nilEngine.SecurityReport(); got != (SecurityReport{}) {
		t.Fatalf("nil engine should report zero value, got %+v", got)
	}
}
