package authkit

import (
	"bytes"
	"testing"
	"time"
)

func TestConfigValidateRules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with keys",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl zero",
			mutate: func(c *Config) {
				c.Token.RefreshTTL = 0
			},
			wantValid: false,
		},
		{
			name: "access ttl not below refresh ttl",
			mutate: func(c *Config) {
				c.Token.AccessTTL = c.Token.RefreshTTL
			},
			wantValid: false,
		},
		{
			name: "unsupported signing method",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 with strong key",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "hs256"
				c.Token.PrivateKey = bytes.Repeat([]byte{0x5a}, 32)
			},
			wantValid: true,
		},
		{
			name: "hs256 key too short",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "hs256"
				c.Token.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 missing private key",
			mutate: func(c *Config) {
				c.Token.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 verify keys instead of public key",
			mutate: func(c *Config) {
				c.Token.VerifyKeys = map[string][]byte{"k1": c.Token.PublicKey}
				c.Token.PublicKey = nil
			},
			wantValid: true,
		},
		{
			name: "leeway within cap",
			mutate: func(c *Config) {
				c.Token.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway above cap",
			mutate: func(c *Config) {
				c.Token.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "leeway negative",
			mutate: func(c *Config) {
				c.Token.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "argon2 memory below floor",
			mutate: func(c *Config) {
				c.Password.Memory = 4096
			},
			wantValid: false,
		},
		{
			name: "argon2 time zero",
			mutate: func(c *Config) {
				c.Password.Time = 0
			},
			wantValid: false,
		},
		{
			name: "argon2 parallelism zero",
			mutate: func(c *Config) {
				c.Password.Parallelism = 0
			},
			wantValid: false,
		},
		{
			name: "salt below floor",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "key length below floor",
			mutate: func(c *Config) {
				c.Password.KeyLength = 8
			},
			wantValid: false,
		},
		{
			name: "min password length zero",
			mutate: func(c *Config) {
				c.Password.MinLength = 0
			},
			wantValid: false,
		},
		{
			name: "login attempts zero",
			mutate: func(c *Config) {
				c.Login.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "login window zero",
			mutate: func(c *Config) {
				c.Login.Window = 0
			},
			wantValid: false,
		},
		{
			name: "lineage lifetime below refresh ttl",
			mutate: func(c *Config) {
				c.Refresh.AbsoluteLineageLifetime = c.Token.RefreshTTL - time.Hour
			},
			wantValid: false,
		},
		{
			name: "refresh throttle enabled",
			mutate: func(c *Config) {
				c.Refresh.EnableThrottle = true
				c.Refresh.MaxPerWindow = 20
				c.Refresh.ThrottleWindow = time.Minute
			},
			wantValid: true,
		},
		{
			name: "refresh throttle without window",
			mutate: func(c *Config) {
				c.Refresh.EnableThrottle = true
				c.Refresh.MaxPerWindow = 20
				c.Refresh.ThrottleWindow = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "empty key prefix",
			mutate: func(c *Config) {
				c.Redis.KeyPrefix = ""
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestConfigCloneSeversKeyAliases(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token.VerifyKeys = map[string][]byte{"k1": cfg.Token.PublicKey}

	clone := cloneConfig(cfg)

	cfg.Token.PrivateKey[0] ^= 0xff
	cfg.Token.VerifyKeys["k1"][0] ^= 0xff

	if clone.Token.PrivateKey[0] == cfg.Token.PrivateKey[0] {
		t.Fatal("clone shares private key memory")
	}
	if clone.Token.VerifyKeys["k1"][0] == cfg.Token.VerifyKeys["k1"][0] {
		t.Fatal("clone shares verify key memory")
	}
}
