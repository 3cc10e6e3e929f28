package authkit

import "time"

// SecurityReport is a read-only snapshot of the engine's effective security
// posture, handy for boot logs and operational review.
type SecurityReport struct {
	SigningAlgorithm        string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	AbsoluteLineageLifetime time.Duration
	Leeway                  time.Duration
	Argon2                  PasswordConfigReport
	MaxLoginAttempts        int
	LoginWindow             time.Duration
	IPThrottleEnabled       bool
	RefreshThrottleEnabled  bool
	ReuseDetectionEnabled   bool
	AuditEnabled            bool
	MetricsEnabled          bool
}

// PasswordConfigReport contains the argon2id parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport summarizes the running configuration. Values reflect the
// cloned config the engine was built with, not the caller's copy.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:        e.config.Token.SigningMethod,
		AccessTTL:               e.config.Token.AccessTTL,
		RefreshTTL:              e.config.Token.RefreshTTL,
		AbsoluteLineageLifetime: e.config.Refresh.AbsoluteLineageLifetime,
		Leeway:                  e.config.Token.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		MaxLoginAttempts:       e.config.Login.MaxAttempts,
		LoginWindow:            e.config.Login.Window,
		IPThrottleEnabled:      e.config.Login.EnableIPThrottle,
		RefreshThrottleEnabled: e.config.Refresh.EnableThrottle,
		ReuseDetectionEnabled:  true,
		AuditEnabled:           e.config.Audit.Enabled,
		MetricsEnabled:         e.config.Metrics.Enabled,
	}
}
