package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("COFFEESHOP_WORKER_ID", "cron-7")
	if got := GetID(); got != "cron-7" {
		t.Fatalf("expected cron-7, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("COFFEESHOP_WORKER_ID", " ")
	if got := GetID(); got == "" {
		t.Fatalf("expected non-empty fallback id")
	}
}

func TestGetIDUsesDynoName(t *testing.T) {
	t.Setenv("COFFEESHOP_WORKER_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
}
