package useragent

import (
	"testing"
)

func TestPool_RoundRobin(t *testing.T) {
	pool := NewPool([]string{"ua1", " ", "ua2", "ua3"}, StrategyRoundRobin)

	if pool.Len() != 3 {
		t.Fatalf("expected blank agent to be dropped, got %d agents", pool.Len())
	}

	want := []string{"ua1", "ua2", "ua3", "ua1", "ua2"}
	for i, w := range want {
		if got := pool.Pick(); got != w {
			t.Errorf("pick %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestPool_RandomUsesSource(t *testing.T) {
	pool := NewPool([]string{"ua1", "ua2", "ua3"}, StrategyRandom)
	pool.intn = func(n int) int { return n - 1 }

	if got := pool.Pick(); got != "ua3" {
		t.Errorf("expected ua3 from stubbed source, got %s", got)
	}
}

func TestPool_EmptyFallsBackToDefaults(t *testing.T) {
	pool := NewPool(nil, "")

	if pool.Len() != len(DefaultAgents) {
		t.Fatalf("expected %d default agents, got %d", len(DefaultAgents), pool.Len())
	}

	agent := pool.Pick()
	found := false
	for _, a := range DefaultAgents {
		if a == agent {
			found = true
		}
	}
	if !found {
		t.Errorf("picked agent %q is not one of the defaults", agent)
	}
}
