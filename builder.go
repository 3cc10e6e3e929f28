package authkit

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/craftdex/authkit/internal/rate"
	"github.com/craftdex/authkit/password"
	"github.com/craftdex/authkit/refreshstore"
	"github.com/craftdex/authkit/revocation"
	"github.com/craftdex/authkit/token"
)

// Builder assembles an Engine. Configure it with the With* chain, then call
// Build exactly once.
type Builder struct {
	config    *Config
	redis     redis.UniversalClient
	provider  IdentityProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	cfg := DefaultConfig()
	return &Builder{
		config: &cfg,
	}
}

// WithConfig replaces the builder's configuration. The config is cloned at
// Build time; the engine never aliases caller-owned memory.
func (b *Builder) WithConfig(cfg *Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client shared by the refresh store, the revocation
// registry, and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the identity backend the engine authenticates against.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink sets the destination for audit events. Ignored unless
// auditing is enabled in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles metric collection on the builder's config.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	if b.config != nil {
		b.config.Metrics.Enabled = enabled
	}
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	if b.config != nil {
		b.config.Metrics.EnableLatencyHistograms = enabled
	}
	return b
}

// Build validates the configuration and wires the engine. A Builder is
// single-use; a second Build fails.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.config == nil {
		return nil, ErrNilConfig
	}
	if b.redis == nil {
		return nil, ErrNilRedis
	}
	if b.provider == nil {
		return nil, ErrNilProvider
	}

	cfg := cloneConfig(*b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- TOKEN CODEC --------
	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		AccessTTL:     cfg.Token.AccessTTL,
		Leeway:        cfg.Token.Leeway,
		RequireIAT:    cfg.Token.RequireIssuedAt,
		KeyID:         cfg.Token.KeyID,
		VerifyKeys:    cfg.Token.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	// -------- REDIS-BACKED STATE --------
	engine := &Engine{
		config:       cfg,
		codec:        codec,
		hasher:       hasher,
		provider:     b.provider,
		refreshStore: refreshstore.NewStore(b.redis, cfg.Redis.KeyPrefix),
		revocations:  revocation.New(b.redis, cfg.Redis.KeyPrefix),
	}
	engine.limiter = rate.New(b.redis, cfg.Redis.KeyPrefix, rate.Config{
		MaxLoginAttempts:      cfg.Login.MaxAttempts,
		LoginWindow:           cfg.Login.Window,
		EnableIPThrottle:      cfg.Login.EnableIPThrottle,
		EnableRefreshThrottle: cfg.Refresh.EnableThrottle,
		MaxRefreshPerWindow:   cfg.Refresh.MaxPerWindow,
		RefreshWindow:         cfg.Refresh.ThrottleWindow,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
