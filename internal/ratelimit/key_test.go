package ratelimit

import "testing"

func TestKeyFor(t *testing.T) {
	if got := KeyFor("42", "203.0.113.7"); got != "user:42" {
		t.Fatalf("expected user key, got %q", got)
	}
	if got := KeyFor("", "203.0.113.7"); got != "ip:203.0.113.7" {
		t.Fatalf("expected ip fallback for anonymous caller, got %q", got)
	}
}
