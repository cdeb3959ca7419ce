package otp

import (
	"context"
	"regexp"
	"testing"
	"time"
)

func TestGenerateCode_SixDigits(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("expected 6 digit code, got %q", code)
		}
	}
}

func TestMemoryRegistry_VerifyConsumesEntry(t *testing.T) {
	r := NewMemoryRegistry(DefaultExpiry)
	ctx := context.Background()

	code, err := r.Issue(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, errVerify := r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if !res.Valid || res.Status != StatusOK {
		t.Fatalf("expected valid result, got %+v", res)
	}

	res, errVerify = r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if res.Valid || res.Status != StatusNotFound {
		t.Fatalf("expected not-found after consume, got %+v", res)
	}
}

func TestMemoryRegistry_ReissueInvalidatesPriorCode(t *testing.T) {
	r := NewMemoryRegistry(DefaultExpiry)
	ctx := context.Background()

	first, err := r.Issue(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, errSecond := r.Issue(ctx, "a@b.test")
	if errSecond != nil {
		t.Fatalf("issue: %v", errSecond)
	}

	if first != second {
		res, errVerify := r.Verify(ctx, "a@b.test", first)
		if errVerify != nil {
			t.Fatalf("verify: %v", errVerify)
		}
		if res.Valid || res.Status != StatusMismatch {
			t.Fatalf("expected mismatch for superseded code, got %+v", res)
		}
	}

	res, errVerify := r.Verify(ctx, "a@b.test", second)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if !res.Valid {
		t.Fatalf("expected current code to verify, got %+v", res)
	}
}

func TestMemoryRegistry_ExpiredCodeEvicted(t *testing.T) {
	r := NewMemoryRegistry(5 * time.Minute)
	ctx := context.Background()

	code, err := r.Issue(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	base := time.Now()
	r.now = func() time.Time { return base.Add(6 * time.Minute) }

	res, errVerify := r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if res.Valid || res.Status != StatusExpired {
		t.Fatalf("expected expired even with matching code, got %+v", res)
	}

	res, errVerify = r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if res.Status != StatusNotFound {
		t.Fatalf("expected eviction after expiry detection, got %+v", res)
	}
}

func TestMemoryRegistry_MismatchKeepsEntry(t *testing.T) {
	r := NewMemoryRegistry(DefaultExpiry)
	ctx := context.Background()

	code, err := r.Issue(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	res, errVerify := r.Verify(ctx, "a@b.test", wrong)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if res.Valid || res.Status != StatusMismatch {
		t.Fatalf("expected mismatch, got %+v", res)
	}

	res, errVerify = r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if !res.Valid {
		t.Fatalf("expected code to survive a mismatch, got %+v", res)
	}
}

func TestMemoryRegistry_VerifyTrimsSubmittedCode(t *testing.T) {
	r := NewMemoryRegistry(DefaultExpiry)
	ctx := context.Background()

	code, err := r.Issue(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, errVerify := r.Verify(ctx, "a@b.test", "  "+code+"\n")
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if !res.Valid {
		t.Fatalf("expected trimmed submission to verify, got %+v", res)
	}
}

func TestMemoryRegistry_Outstanding(t *testing.T) {
	r := NewMemoryRegistry(5 * time.Minute)
	ctx := context.Background()

	outstanding, err := r.Outstanding(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding {
		t.Fatalf("expected no outstanding entry before issue")
	}

	code, errIssue := r.Issue(ctx, "a@b.test")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	outstanding, err = r.Outstanding(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if !outstanding {
		t.Fatalf("expected outstanding entry after issue")
	}

	if _, errVerify := r.Verify(ctx, "a@b.test", code); errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	outstanding, err = r.Outstanding(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding {
		t.Fatalf("expected no outstanding entry after consume")
	}
}

func TestMemoryRegistry_OutstandingSurvivesExpiry(t *testing.T) {
	r := NewMemoryRegistry(5 * time.Minute)
	ctx := context.Background()

	code, errIssue := r.Issue(ctx, "a@b.test")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	base := time.Now()
	r.now = func() time.Time { return base.Add(6 * time.Minute) }

	// An expired entry still blocks until a verify attempt evicts it.
	outstanding, err := r.Outstanding(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if !outstanding {
		t.Fatalf("expected expired entry to remain outstanding before verification")
	}

	res, errVerify := r.Verify(ctx, "a@b.test", code)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if res.Status != StatusExpired {
		t.Fatalf("expected expired verification, got %+v", res)
	}

	outstanding, err = r.Outstanding(ctx, "a@b.test")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding {
		t.Fatalf("expected eviction to clear the outstanding entry")
	}
}

func TestMemoryRegistry_EvictionReclaimsEntries(t *testing.T) {
	r := NewMemoryRegistry(5 * time.Minute)
	ctx := context.Background()

	code, errIssue := r.Issue(ctx, "consume@b.test")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errVerify := r.Verify(ctx, "consume@b.test", code); errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}

	if _, errIssue = r.Issue(ctx, "expire@b.test"); errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	base := time.Now()
	r.now = func() time.Time { return base.Add(6 * time.Minute) }
	if _, errVerify := r.Verify(ctx, "expire@b.test", "000000"); errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}

	// Verifying an email that never held a code must not allocate one.
	if _, errVerify := r.Verify(ctx, "unknown@b.test", "000000"); errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}

	r.mu.Lock()
	remaining := len(r.entries)
	r.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected consumed and expired entries to be reclaimed, %d remain", remaining)
	}
}
