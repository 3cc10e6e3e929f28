package test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/craftdex/authkit"
)

func TestDefaultConfigValidatesOnceKeysAreSet(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	cfg := authkit.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate with keys, got %v", err)
	}
}

func TestDefaultConfigRequiresKeyMaterial(t *testing.T) {
	cfg := authkit.DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to fail without key material")
	}
}

func TestDefaultConfigBaselineStaysHardened(t *testing.T) {
	cfg := authkit.DefaultConfig()

	if cfg.Token.SigningMethod != "ed25519" {
		t.Fatalf("expected ed25519 default signing, got %q", cfg.Token.SigningMethod)
	}
	if cfg.Token.AccessTTL >= cfg.Token.RefreshTTL {
		t.Fatal("expected short-lived access tokens relative to refresh tokens")
	}
	if cfg.Refresh.AbsoluteLineageLifetime < cfg.Token.RefreshTTL {
		t.Fatal("expected lineage lifetime to cover at least one refresh TTL")
	}
	if cfg.Password.MinLength < 8 {
		t.Fatalf("expected minimum password length >= 8, got %d", cfg.Password.MinLength)
	}
	if !cfg.Password.UpgradeOnLogin {
		t.Fatal("expected transparent hash upgrades to stay enabled")
	}
	if cfg.Login.MaxAttempts <= 0 || cfg.Login.Window <= 0 {
		t.Fatal("expected login throttling defaults to be set")
	}
}
