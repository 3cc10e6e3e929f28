//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/craftdex/authkit/refreshstore"
)

func newIntegrationStore(t *testing.T) (*refreshstore.Store, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := refreshstore.NewStore(rdb, "ak")

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func makeRecord(subject, lineage, jti string) *refreshstore.Record {
	now := time.Now()

	return &refreshstore.Record{
		JTI:              jti,
		Subject:          subject,
		Lineage:          lineage,
		IssuedAt:         now.Unix(),
		ExpiresAt:        now.Add(time.Hour).Unix(),
		LineageCreatedAt: now.Unix(),
	}
}
