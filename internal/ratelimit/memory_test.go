package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_040, 0)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "a@b.test", 3, now)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, "a@b.test", 3, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected fourth request in window to be rejected")
	}

	res, err = l.Allow(ctx, "a@b.test", 3, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected request in next window to be allowed")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	l := NewMemoryLimiter()
	res, err := l.Allow(context.Background(), "a@b.test", 0, time.Now())
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected zero limit to disable throttling")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Now()

	if res, _ := l.Allow(ctx, "a@b.test", 1, now); !res.Allowed {
		t.Fatalf("expected first key to be allowed")
	}
	if res, _ := l.Allow(ctx, "a@b.test", 1, now); res.Allowed {
		t.Fatalf("expected first key to be exhausted")
	}
	if res, _ := l.Allow(ctx, "c@d.test", 1, now); !res.Allowed {
		t.Fatalf("expected second key to be unaffected")
	}
}
