package authkit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/craftdex/authkit/password"
)

func newBenchmarkEngine(tb testing.TB) (*Engine, func()) {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		tb.Fatalf("GenerateKey failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Token.Issuer = "authkit-bench"
	cfg.Token.AccessTTL = 10 * time.Minute
	cfg.Token.RefreshTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = false
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		tb.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash("correct-password-123")
	if err != nil {
		tb.Fatalf("hash failed: %v", err)
	}

	provider := newStubProvider()
	provider.add(Identity{
		Subject:      "u1",
		Identifier:   "alice",
		PasswordHash: hash,
		Roles:        []string{"member"},
		Status:       AccountActive,
	})

	engine, err := New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func BenchmarkVerifyAccess(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	pair, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifyAccess(context.Background(), pair.AccessToken); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	pair, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	refresh := pair.RefreshToken
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = next.RefreshToken
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := engine.Login(context.Background(), "alice", "correct-password-123")
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		// Keep the session population flat across iterations.
		b.StopTimer()
		_ = engine.Logout(context.Background(), pair.RefreshToken)
		b.StartTimer()
	}
}

func BenchmarkAuthorize(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	res := &AuthResult{Subject: "u1", Roles: []string{"member", "auditor"}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := engine.Authorize(res, "member"); err != nil {
			b.Fatalf("authorize failed: %v", err)
		}
	}
}
