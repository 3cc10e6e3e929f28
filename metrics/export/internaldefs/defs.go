package internaldefs

import (
	authkit "github.com/craftdex/authkit"
)

// CounterDef binds a core metric id to its exported name and help text.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram id to its exported name and help text.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order. Exporters
// iterate this slice so Prometheus and OTel output always agree.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authkit.MetricRefreshReuseDetected, Name: "authkit_refresh_reuse_detected_total", Help: "Refresh tokens replayed after consumption or revocation."},
	{ID: authkit.MetricRefreshRateLimited, Name: "authkit_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authkit.MetricVerifySuccess, Name: "authkit_verify_success_total", Help: "Access tokens accepted by verification."},
	{ID: authkit.MetricVerifyFailure, Name: "authkit_verify_failure_total", Help: "Access tokens rejected by verification."},
	{ID: authkit.MetricRevokedTokenRejected, Name: "authkit_revoked_token_rejected_total", Help: "Access tokens rejected because jti or lineage was revoked."},
	{ID: authkit.MetricRateLimitHit, Name: "authkit_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Session and access-token logout operations."},
	{ID: authkit.MetricLogoutAll, Name: "authkit_logout_all_total", Help: "Subject-wide revocations."},
	{ID: authkit.MetricPasswordChangeSuccess, Name: "authkit_password_change_success_total", Help: "Successful password changes."},
	{ID: authkit.MetricPasswordChangeFailure, Name: "authkit_password_change_failure_total", Help: "Failed password change attempts."},
	{ID: authkit.MetricRevocationWriteFailure, Name: "authkit_revocation_write_failure_total", Help: "Best-effort tombstone writes that failed."},
}

// HistogramDefs lists every exported histogram in a fixed order.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricVerifyLatency, Name: "authkit_verify_latency_seconds", Help: "VerifyAccess latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus "le"
// label form. Must stay aligned with the core collector's bucket layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in OTel
// instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count so exporters never index out of range.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form the
// Prometheus exposition format requires.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
