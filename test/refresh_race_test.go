//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/craftdex/authkit/refreshstore"
)

func TestRefreshRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	rec := makeRecord("u1", "lin-race", "jti-race")
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Consume(ctx, "jti-race")
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, refreshstore.ErrRecordConsumed):
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}
