package redis

import (
	"context"
	"testing"
	"time"

	"order_dashboard/internal/model"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
)

func newGuard(t *testing.T) (*EstimateGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewEstimateGuard(rdb, 48*time.Hour), mr
}

func sentAt() model.SentEstimate {
	return model.SentEstimate{Value: model.Estimate20, SentAt: time.UnixMilli(1714557600000)}
}

func TestKeys(t *testing.T) {
	if got := EstimateClaimKey("abc"); got != "order_dashboard:estimate:claim:abc" {
		t.Fatalf("claim key = %q", got)
	}
	if got := ActionRateLimitKey("deliver", "10.0.0.1", "abc"); got != "rate_limit:order_dashboard:deliver:10.0.0.1:abc" {
		t.Fatalf("rate limit key = %q", got)
	}
}

func TestClaimEstimateFirstClaimIsPending(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	claim, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-a", sentAt())
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	if claim.Token != "tok-a" || claim.Confirmed {
		t.Fatalf("claim = %+v", claim)
	}
	key := EstimateClaimKey("o-1")
	if got := mr.HGet(key, "state"); got != ClaimPending {
		t.Fatalf("state = %q", got)
	}
	if ttl := mr.TTL(key); ttl != pendingClaimTTL {
		t.Fatalf("pending ttl = %v", ttl)
	}
}

func TestClaimEstimateSecondClaimSeesPending(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	if _, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-a", sentAt()); err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	claim, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-b", model.SentEstimate{Value: model.Estimate10, SentAt: time.Now()})
	if err != nil || ok {
		t.Fatalf("second claim = %v, %v", ok, err)
	}
	if claim.Token != "tok-a" || claim.Confirmed || claim.Record.Value != model.Estimate20 {
		t.Fatalf("existing claim = %+v", claim)
	}
}

func TestConfirmEstimate(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()
	rec := sentAt()

	if _, _, err := g.ClaimEstimate(ctx, "o-1", "tok-a", rec); err != nil {
		t.Fatal(err)
	}
	if ok, err := g.ConfirmEstimate(ctx, "o-1", "tok-b", rec); err != nil || ok {
		t.Fatalf("confirm with foreign token = %v, %v", ok, err)
	}
	if ok, err := g.ConfirmEstimate(ctx, "o-1", "tok-a", rec); err != nil || !ok {
		t.Fatalf("confirm = %v, %v", ok, err)
	}
	if ttl := mr.TTL(EstimateClaimKey("o-1")); ttl != 48*time.Hour {
		t.Fatalf("confirmed ttl = %v", ttl)
	}

	claim, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-c", rec)
	if err != nil || ok {
		t.Fatalf("claim after confirm = %v, %v", ok, err)
	}
	if !claim.Confirmed || claim.Record.Value != rec.Value || !claim.Record.SentAt.Equal(rec.SentAt) {
		t.Fatalf("confirmed claim = %+v", claim)
	}
}

func TestReleaseEstimateOnlyWithMatchingToken(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()
	key := EstimateClaimKey("o-1")

	if _, _, err := g.ClaimEstimate(ctx, "o-1", "tok-a", sentAt()); err != nil {
		t.Fatal(err)
	}
	if err := g.ReleaseEstimate(ctx, "o-1", "tok-b"); err != nil {
		t.Fatalf("release with foreign token: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatalf("foreign token must not release the claim")
	}
	if err := g.ReleaseEstimate(ctx, "o-1", "tok-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("owner release should delete the claim")
	}
	if _, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-b", sentAt()); err != nil || !ok {
		t.Fatalf("claim after release = %v, %v", ok, err)
	}
}

func TestPendingClaimExpires(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	if _, _, err := g.ClaimEstimate(ctx, "o-1", "tok-a", sentAt()); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(pendingClaimTTL + time.Second)
	if _, ok, err := g.ClaimEstimate(ctx, "o-1", "tok-b", sentAt()); err != nil || !ok {
		t.Fatalf("abandoned pending claim should expire: %v, %v", ok, err)
	}
}

func TestParseClaim(t *testing.T) {
	got, err := parseClaim([]any{"tok", "sent", "20", "1714557600000"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Token != "tok" || !got.Confirmed || got.Record.Value != model.Estimate20 ||
		!got.Record.SentAt.Equal(time.UnixMilli(1714557600000)) {
		t.Fatalf("claim = %+v", got)
	}

	bad := []any{
		"not a slice",
		[]any{"tok", "sent", "20"},
		[]any{"tok", "done", "20", "1"},
		[]any{"tok", "pending", nil, "1"},
		[]any{"tok", "pending", "20", "yesterday"},
	}
	for _, b := range bad {
		if _, err := parseClaim(b); err == nil {
			t.Fatalf("expected error for %v", b)
		}
	}
}

func TestNewEstimateGuardDefaultTTL(t *testing.T) {
	g := NewEstimateGuard(nil, 0)
	if g.ttl != 48*time.Hour || g.pendingTTL != pendingClaimTTL {
		t.Fatalf("ttl = %v pending = %v", g.ttl, g.pendingTTL)
	}
}
