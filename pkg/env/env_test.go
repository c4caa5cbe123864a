package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("ENGAGE_TEST_EMPTY", "  ")
	if got := Get("ENGAGE_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstPicksEarliestSetKey(t *testing.T) {
	t.Setenv("ENGAGE_TEST_A", "")
	t.Setenv("ENGAGE_TEST_B", "b")
	t.Setenv("ENGAGE_TEST_C", "c")
	if got := First("ENGAGE_TEST_A", "ENGAGE_TEST_B", "ENGAGE_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("ENGAGE_TEST_MISSING"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
