package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	engine, _, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	start := make(chan struct{})

	type outcome struct {
		pair *TokenPair
		err  error
	}
	results := make(chan outcome, n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			p, err := engine.Refresh(context.Background(), pair.RefreshToken)
			results <- outcome{pair: p, err: err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var winner *TokenPair
	success := 0
	reuse := 0
	for res := range results {
		switch {
		case res.err == nil:
			success++
			winner = res.pair
		case errors.Is(res.err, ErrTokenReuseDetected):
			reuse++
		default:
			t.Fatalf("unexpected refresh error: %v", res.err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", success)
	}
	if reuse != n-1 {
		t.Fatalf("expected %d reuse rejections, got %d", n-1, reuse)
	}

	// The losers were replays, so the lineage was tombstoned under the race.
	// Even the winner's freshly minted pair is dead, which is the correct
	// posture when the same token was presented 16 times at once.
	if _, err := engine.VerifyAccess(ctx, winner.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected winner's access token revoked after detected reuse, got %v", err)
	}
	if _, err := engine.Refresh(ctx, winner.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected winner's refresh token dead after detected reuse, got %v", err)
	}
}

func TestConcurrentRefreshAndLogoutConverges(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery")

	engine, _, done := newTestEngine(t, testConfig(t), provider)
	defer done()

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	start := make(chan struct{})

	var refreshErr, logoutErr error
	var rotated *TokenPair

	go func() {
		defer wg.Done()
		<-start
		rotated, refreshErr = engine.Refresh(context.Background(), pair.RefreshToken)
	}()
	go func() {
		defer wg.Done()
		<-start
		logoutErr = engine.Logout(context.Background(), pair.RefreshToken)
	}()
	close(start)
	wg.Wait()

	// Logout is idempotent and tolerates racing a rotation. The refresh may
	// win, lose to the tombstone as reuse, or find the record already deleted
	// and report expiry; anything else is a bug.
	if logoutErr != nil {
		t.Fatalf("logout must succeed under race, got %v", logoutErr)
	}
	if refreshErr != nil && !errors.Is(refreshErr, ErrTokenReuseDetected) && !errors.Is(refreshErr, ErrExpired) {
		t.Fatalf("unexpected refresh error under race: %v", refreshErr)
	}

	// Whatever interleaving happened, the lineage ends dead: the logout
	// tombstone covers tokens minted while it raced.
	if refreshErr == nil {
		if _, err := engine.VerifyAccess(ctx, rotated.AccessToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("expected rotated access token revoked by logout, got %v", err)
		}
	}
	if _, err := engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected original access token revoked, got %v", err)
	}
}
