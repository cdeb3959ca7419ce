package security

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("sekrit")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "sekrit" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword("sekrit", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected mismatching password to fail")
	}
	if CheckPassword("sekrit", "") {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := MintSessionToken("secret", "user-1", "a@b.test", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.Subject)
	}
	if claims.Email != "a@b.test" {
		t.Fatalf("expected email a@b.test, got %q", claims.Email)
	}

	if _, errWrong := ParseSessionToken("other-secret", token); errWrong == nil {
		t.Fatalf("expected parse with wrong secret to fail")
	}
}

func TestSessionTokenExpiry(t *testing.T) {
	token, err := MintSessionToken("secret", "user-1", "a@b.test", -time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, errParse := ParseSessionToken("secret", token); errParse == nil {
		t.Fatalf("expected expired token to fail")
	}
}
