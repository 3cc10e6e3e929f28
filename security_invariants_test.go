package authkit

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestSecurityInvariantNoCredentialMaterialInTokens(t *testing.T) {
	const pass = "hunter2-but-longer"

	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", pass)
	storedHash := provider.hash("u1")

	engine, _, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	pair, err := engine.Login(context.Background(), "alice", pass)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for name, tok := range map[string]string{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
	} {
		parts := strings.Split(tok, ".")
		if len(parts) != 3 {
			t.Fatalf("%s: expected three JWT segments, got %d", name, len(parts))
		}
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			t.Fatalf("%s: payload decode failed: %v", name, err)
		}
		body := string(payload)

		if strings.Contains(body, pass) {
			t.Errorf("%s token payload leaks the password", name)
		}
		if strings.Contains(body, storedHash) {
			t.Errorf("%s token payload leaks the password hash", name)
		}
		if strings.Contains(body, "argon2") {
			t.Errorf("%s token payload leaks hash parameters", name)
		}
	}
}

func TestSecurityInvariantRotationLinksParentAndLineage(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	engine, _, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	ctx := context.Background()
	first, err := engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	second, err := engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	prev, err := engine.codec.ParseRefresh(first.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh(first) failed: %v", err)
	}
	next, err := engine.codec.ParseRefresh(second.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh(second) failed: %v", err)
	}

	if next.Lineage != prev.Lineage {
		t.Fatalf("rotation changed lineage: %q to %q", prev.Lineage, next.Lineage)
	}
	if next.ID == prev.ID {
		t.Fatal("rotation reused the jti")
	}
	if next.Parent != prev.ID {
		t.Fatalf("successor parent = %q, want %q", next.Parent, prev.ID)
	}
	if prev.Parent != "" {
		t.Fatalf("login-minted token should have no parent, got %q", prev.Parent)
	}
}

func TestSecurityInvariantLineageTombstoneOutlivesMembers(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	engine, mr, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := engine.codec.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}

	recordTTL := mr.TTL("ak:rr:" + claims.ID)
	if recordTTL <= 0 {
		t.Fatalf("expected live refresh record, ttl=%v", recordTTL)
	}

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	lineageTTL := mr.TTL("ak:rv:l:" + claims.Lineage)
	if lineageTTL < recordTTL {
		t.Fatalf("lineage tombstone ttl %v must cover longest member ttl %v", lineageTTL, recordTTL)
	}
	if jtiTTL := mr.TTL("ak:rv:t:" + claims.ID); jtiTTL <= 0 {
		t.Fatalf("expected jti tombstone, ttl=%v", jtiTTL)
	}
}

func TestSecurityInvariantEveryOperationFailsClosed(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	engine, mr, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	mr.Close()

	ops := map[string]func() error{
		"login": func() error {
			_, err := engine.Login(ctx, "alice", "correct-horse-battery")
			return err
		},
		"refresh": func() error {
			_, err := engine.Refresh(ctx, pair.RefreshToken)
			return err
		},
		"verify": func() error {
			_, err := engine.VerifyAccess(ctx, pair.AccessToken)
			return err
		},
		"logout": func() error {
			return engine.Logout(ctx, pair.RefreshToken)
		},
		"revoke subject": func() error {
			return engine.RevokeSubject(ctx, "u1")
		},
		"change password": func() error {
			return engine.ChangePassword(ctx, "u1", "correct-horse-battery", "replacement-pass-1")
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}
