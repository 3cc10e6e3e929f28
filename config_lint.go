package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks how much a lint finding matters.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding about a configuration.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the ordered result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in emission order.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
// Boot code typically treats HIGH findings as fatal:
//
//	if err := cfg.Lint().AsError(authkit.LintHigh); err != nil { ... }
func (ws LintWarnings) AsError(min LintSeverity) error {
	filtered := ws.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}

	parts := make([]string, 0, len(filtered))
	for _, w := range filtered {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint flags configurations that Validate accepts but that weaken the
// security posture. Validate rejects the impossible; Lint warns about the
// legal-but-questionable. Findings carry stable codes so deployments can
// baseline the ones they accept.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, severity LintSeverity, format string, args ...interface{}) {
		ws = append(ws, LintWarning{
			Code:     code,
			Severity: severity,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	// Token
	if c.Token.Leeway > 0 && c.Token.Leeway >= c.Token.AccessTTL {
		add("leeway_exceeds_access_ttl", LintHigh,
			"Leeway %v is at least AccessTTL %v, making access expiry meaningless",
			c.Token.Leeway, c.Token.AccessTTL)
	} else if c.Token.Leeway > time.Minute {
		add("leeway_large", LintWarn,
			"Leeway %v is unusually tolerant of clock skew", c.Token.Leeway)
	}
	if c.Token.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn,
			"AccessTTL %v widens the revocation gap for stolen access tokens", c.Token.AccessTTL)
	}
	if c.Token.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn,
			"RefreshTTL %v keeps idle sessions alive for over a month", c.Token.RefreshTTL)
	}
	if c.Token.SigningMethod == "hs256" {
		add("signing_hs256", LintWarn,
			"hs256 shares one symmetric key between signing and verification; ed25519 lets verifiers hold only the public key")
	}

	// Password
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn,
			"argon2 memory %d KB is below the 64 MB recommendation", c.Password.Memory)
	}
	if c.Password.MinLength > 0 && c.Password.MinLength < 8 {
		add("min_length_short", LintWarn,
			"MinLength %d admits passwords shorter than 8 characters", c.Password.MinLength)
	}

	// Login limiter
	if c.Login.MaxAttempts > 20 {
		add("login_budget_generous", LintWarn,
			"MaxAttempts %d gives online guessing a lot of room per window", c.Login.MaxAttempts)
	}
	if !c.Login.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo,
			"per-IP login throttling is off; only per-identifier limits apply")
	}

	// Refresh
	if !c.Refresh.EnableThrottle {
		add("refresh_throttle_disabled", LintInfo,
			"per-lineage rotation throttling is off")
	}
	if c.Refresh.AbsoluteLineageLifetime > 90*24*time.Hour {
		add("lineage_lifetime_long", LintWarn,
			"AbsoluteLineageLifetime %v lets one login rotate for over three months", c.Refresh.AbsoluteLineageLifetime)
	}

	// Audit
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn,
			"no audit trail; reuse detections and lockouts leave no record")
	} else if !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo,
			"a slow audit sink will stall authentication once the buffer fills")
	}

	return ws
}
