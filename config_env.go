package authkit

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides mirrors the tunable parts of Config. Pointer fields stay nil
// when the variable is unset, so only present variables override defaults.
type envOverrides struct {
	AccessTTL     *time.Duration `env:"AUTHKIT_ACCESS_TTL"`
	RefreshTTL    *time.Duration `env:"AUTHKIT_REFRESH_TTL"`
	SigningMethod *string        `env:"AUTHKIT_SIGNING_METHOD"`
	PrivateKey    *string        `env:"AUTHKIT_PRIVATE_KEY"`
	PublicKey     *string        `env:"AUTHKIT_PUBLIC_KEY"`
	Issuer        *string        `env:"AUTHKIT_ISSUER"`
	Audience      *string        `env:"AUTHKIT_AUDIENCE"`
	Leeway        *time.Duration `env:"AUTHKIT_LEEWAY"`
	KeyID         *string        `env:"AUTHKIT_KEY_ID"`

	ArgonMemory      *uint32 `env:"AUTHKIT_ARGON_MEMORY_KB"`
	ArgonTime        *uint32 `env:"AUTHKIT_ARGON_TIME"`
	ArgonParallelism *uint8  `env:"AUTHKIT_ARGON_PARALLELISM"`
	PasswordMinLen   *int    `env:"AUTHKIT_PASSWORD_MIN_LENGTH"`

	LoginMaxAttempts *int           `env:"AUTHKIT_LOGIN_MAX_ATTEMPTS"`
	LoginWindow      *time.Duration `env:"AUTHKIT_LOGIN_WINDOW"`
	LoginIPThrottle  *bool          `env:"AUTHKIT_LOGIN_IP_THROTTLE"`

	LineageLifetime     *time.Duration `env:"AUTHKIT_LINEAGE_LIFETIME"`
	RefreshThrottle     *bool          `env:"AUTHKIT_REFRESH_THROTTLE"`
	RefreshMaxPerWindow *int           `env:"AUTHKIT_REFRESH_MAX_PER_WINDOW"`
	RefreshWindow       *time.Duration `env:"AUTHKIT_REFRESH_WINDOW"`

	AuditEnabled    *bool `env:"AUTHKIT_AUDIT_ENABLED"`
	AuditBufferSize *int  `env:"AUTHKIT_AUDIT_BUFFER_SIZE"`
	AuditDropIfFull *bool `env:"AUTHKIT_AUDIT_DROP_IF_FULL"`

	MetricsEnabled *bool `env:"AUTHKIT_METRICS_ENABLED"`
	MetricsLatency *bool `env:"AUTHKIT_METRICS_LATENCY"`

	RedisKeyPrefix *string `env:"AUTHKIT_REDIS_KEY_PREFIX"`
}

// ConfigFromEnv layers AUTHKIT_* environment variables over DefaultConfig.
// Key material may be standard base64 (decoded transparently) or PEM passed
// through verbatim. The result is not validated; Build does that.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if overrides.AccessTTL != nil {
		cfg.Token.AccessTTL = *overrides.AccessTTL
	}
	if overrides.RefreshTTL != nil {
		cfg.Token.RefreshTTL = *overrides.RefreshTTL
	}
	if overrides.SigningMethod != nil {
		cfg.Token.SigningMethod = *overrides.SigningMethod
	}
	if overrides.PrivateKey != nil {
		cfg.Token.PrivateKey = decodeEnvKey(*overrides.PrivateKey)
	}
	if overrides.PublicKey != nil {
		cfg.Token.PublicKey = decodeEnvKey(*overrides.PublicKey)
	}
	if overrides.Issuer != nil {
		cfg.Token.Issuer = *overrides.Issuer
	}
	if overrides.Audience != nil {
		cfg.Token.Audience = *overrides.Audience
	}
	if overrides.Leeway != nil {
		cfg.Token.Leeway = *overrides.Leeway
	}
	if overrides.KeyID != nil {
		cfg.Token.KeyID = *overrides.KeyID
	}

	if overrides.ArgonMemory != nil {
		cfg.Password.Memory = *overrides.ArgonMemory
	}
	if overrides.ArgonTime != nil {
		cfg.Password.Time = *overrides.ArgonTime
	}
	if overrides.ArgonParallelism != nil {
		cfg.Password.Parallelism = *overrides.ArgonParallelism
	}
	if overrides.PasswordMinLen != nil {
		cfg.Password.MinLength = *overrides.PasswordMinLen
	}

	if overrides.LoginMaxAttempts != nil {
		cfg.Login.MaxAttempts = *overrides.LoginMaxAttempts
	}
	if overrides.LoginWindow != nil {
		cfg.Login.Window = *overrides.LoginWindow
	}
	if overrides.LoginIPThrottle != nil {
		cfg.Login.EnableIPThrottle = *overrides.LoginIPThrottle
	}

	if overrides.LineageLifetime != nil {
		cfg.Refresh.AbsoluteLineageLifetime = *overrides.LineageLifetime
	}
	if overrides.RefreshThrottle != nil {
		cfg.Refresh.EnableThrottle = *overrides.RefreshThrottle
	}
	if overrides.RefreshMaxPerWindow != nil {
		cfg.Refresh.MaxPerWindow = *overrides.RefreshMaxPerWindow
	}
	if overrides.RefreshWindow != nil {
		cfg.Refresh.ThrottleWindow = *overrides.RefreshWindow
	}

	if overrides.AuditEnabled != nil {
		cfg.Audit.Enabled = *overrides.AuditEnabled
	}
	if overrides.AuditBufferSize != nil {
		cfg.Audit.BufferSize = *overrides.AuditBufferSize
	}
	if overrides.AuditDropIfFull != nil {
		cfg.Audit.DropIfFull = *overrides.AuditDropIfFull
	}

	if overrides.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *overrides.MetricsEnabled
	}
	if overrides.MetricsLatency != nil {
		cfg.Metrics.EnableLatencyHistograms = *overrides.MetricsLatency
	}

	if overrides.RedisKeyPrefix != nil {
		cfg.Redis.KeyPrefix = *overrides.RedisKeyPrefix
	}

	return cfg, nil
}

func decodeEnvKey(value string) []byte {
	if value == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded
	}
	return []byte(value)
}
