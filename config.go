package authkit

import (
	"errors"
	"time"
)

// Config is the full engine configuration. Build deep-clones it, so mutating
// a Config after Build has no effect on a running engine.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Login    LoginConfig
	Refresh  RefreshConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls signing and verification of both token kinds.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte

	Issuer   string
	Audience string

	// Leeway tolerates clock skew on expiry checks, capped at two minutes.
	Leeway time.Duration
	// RequireIssuedAt rejects tokens without an iat claim.
	RequireIssuedAt bool

	// KeyID stamps issued tokens with a kid header. VerifyKeys maps kid to
	// verification key, allowing rollover without invalidating live tokens.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id parameters and the change-password policy.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	UpgradeOnLogin   bool
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls the fixed-window login limiter.
type LoginConfig struct {
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls rotation behavior beyond the token TTLs.
type RefreshConfig struct {
	// AbsoluteLineageLifetime caps how long a lineage can keep rotating past
	// its original login before re-authentication is forced.
	AbsoluteLineageLifetime time.Duration

	// EnableThrottle bounds rotations per lineage per window.
	EnableThrottle bool
	MaxPerWindow   int
	ThrottleWindow time.Duration
}

/*
====================================
AUDIT / METRICS / REDIS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics collector.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig namespaces every key the engine writes.
type RedisConfig struct {
	KeyPrefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production-safe defaults. Key material must still be
// provided before Build.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        0,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinLength:        8,
			UpgradeOnLogin:   true,
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			Window:           15 * time.Minute,
			EnableIPThrottle: false,
		},
		Refresh: RefreshConfig{
			AbsoluteLineageLifetime: 30 * 24 * time.Hour,
			EnableThrottle:          false,
			MaxPerWindow:            20,
			ThrottleWindow:          1 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Redis: RedisConfig{
			KeyPrefix: "ak",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if len(cfg.Token.VerifyKeys) > 0 {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Build calls it;
// callers layering their own values on DefaultConfig can call it early to get
// specific errors.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be < RefreshTTL")
	}

	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 && len(c.Token.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey or VerifyKeys")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) < 32 {
		return errors.New("hs256 requires PrivateKey of at least 32 bytes")
	}

	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be <= 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Login
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Window <= 0 {
		return errors.New("Login Window must be > 0")
	}

	// Refresh
	if c.Refresh.AbsoluteLineageLifetime <= 0 {
		return errors.New("Refresh AbsoluteLineageLifetime must be > 0")
	}
	if c.Refresh.AbsoluteLineageLifetime < c.Token.RefreshTTL {
		return errors.New("Refresh AbsoluteLineageLifetime must be >= Token RefreshTTL")
	}
	if c.Refresh.EnableThrottle {
		if c.Refresh.MaxPerWindow <= 0 {
			return errors.New("Refresh MaxPerWindow must be > 0 when refresh throttle is enabled")
		}
		if c.Refresh.ThrottleWindow <= 0 {
			return errors.New("Refresh ThrottleWindow must be > 0 when refresh throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	// Redis
	if c.Redis.KeyPrefix == "" {
		return errors.New("Redis KeyPrefix must not be empty")
	}

	return nil
}
