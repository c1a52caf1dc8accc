package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	if l.Enabled() {
		t.Fatalf("expected nil limiter to be disabled")
	}
	res, err := l.AllowRegistration(context.Background(), 1)
	if err != nil || !res.Allowed {
		t.Fatalf("expected registration allowed, got %+v %v", res, err)
	}
	res, err = l.AllowCheckin(context.Background(), 1)
	if err != nil || !res.Allowed {
		t.Fatalf("expected checkin allowed, got %+v %v", res, err)
	}
	release, err := l.LockScan(context.Background(), 1, "code")
	if err != nil || release == nil {
		t.Fatalf("expected noop lock, got %v", err)
	}
	release()
}

func TestNewLimiterWithoutClient(t *testing.T) {
	if l := NewLimiter(nil, nil); l != nil {
		t.Fatalf("expected nil limiter without redis client")
	}
	if b := NewTokenBucket(nil); b != nil {
		t.Fatalf("expected nil bucket without redis client")
	}
	if lk := NewLocker(nil); lk != nil {
		t.Fatalf("expected nil locker without redis client")
	}
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var b *TokenBucket
	res, err := b.Allow(context.Background(), "k", 1, 1)
	if err == nil || res.Allowed {
		t.Fatalf("expected unconfigured bucket to refuse")
	}
}

func TestDefaultBucketTTL(t *testing.T) {
	if got := defaultBucketTTL(20, 40); got != 4*time.Second {
		t.Fatalf("expected 4s, got %s", got)
	}
	if got := defaultBucketTTL(100, 1); got != time.Second {
		t.Fatalf("expected floor of 1s, got %s", got)
	}
	if got := defaultBucketTTL(0, 0); got != time.Second {
		t.Fatalf("expected 1s for invalid input, got %s", got)
	}
}

func TestCastHelpers(t *testing.T) {
	if castToInt(int64(3)) != 3 || castToInt(2.9) != 2 || castToInt("x") != 0 {
		t.Fatalf("unexpected castToInt results")
	}
	if castToFloat("1.5") != 1.5 || castToFloat(int64(2)) != 2 || castToFloat(nil) != 0 {
		t.Fatalf("unexpected castToFloat results")
	}
}
