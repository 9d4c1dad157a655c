package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newLimiter(t *testing.T) *TokenBucketLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTokenBucketLimiter(rdb)
}

func TestLimiterAllowsWhenDisabled(t *testing.T) {
	lim := newLimiter(t)

	dec, err := lim.Allow(context.Background(), "launch", "owner-1", Bucket{})
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected allowed when bucket disabled")
	}
}

func TestLimiterBlocksAfterBurst(t *testing.T) {
	lim := newLimiter(t)
	bucket := Bucket{RequestsPerMinute: 60, BurstSize: 1}

	dec1, err := lim.Allow(context.Background(), "launch", "owner-1", bucket)
	if err != nil {
		t.Fatalf("allow 1: %v", err)
	}
	if !dec1.Allowed {
		t.Fatal("expected first launch to be allowed")
	}

	dec2, err := lim.Allow(context.Background(), "launch", "owner-1", bucket)
	if err != nil {
		t.Fatalf("allow 2: %v", err)
	}
	if dec2.Allowed {
		t.Fatal("expected second launch to be rate limited")
	}
	if dec2.RetryAfter <= 0 {
		t.Fatal("expected retryAfter to be set")
	}
}

func TestLimiterBucketsAreIndependent(t *testing.T) {
	lim := newLimiter(t)
	bucket := Bucket{RequestsPerMinute: 60, BurstSize: 1}

	if dec, err := lim.Allow(context.Background(), "launch", "owner-1", bucket); err != nil || !dec.Allowed {
		t.Fatalf("owner-1 first: dec=%+v err=%v", dec, err)
	}
	if dec, err := lim.Allow(context.Background(), "launch", "owner-2", bucket); err != nil || !dec.Allowed {
		t.Fatalf("owner-2 should have its own bucket: dec=%+v err=%v", dec, err)
	}
}

func TestLimiterNilClientFailsOpen(t *testing.T) {
	lim := NewTokenBucketLimiter(nil)
	dec, err := lim.Allow(context.Background(), "launch", "owner-1", Bucket{RequestsPerMinute: 60, BurstSize: 1})
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected fail-open without redis client")
	}
}
