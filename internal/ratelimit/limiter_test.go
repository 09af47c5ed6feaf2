package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter_SharesBucketPerHost(t *testing.T) {
	lim := NewHostLimiter(1000, 5)
	ctx := context.Background()

	urls := []string{
		"https://autospot.example/",
		"https://autospot.example/used-car/?page=2",
		"https://cdn.example/a.jpg",
	}
	for _, u := range urls {
		if err := lim.Wait(ctx, u); err != nil {
			t.Fatalf("Wait(%s): %v", u, err)
		}
	}

	if got := lim.Hosts(); got != 2 {
		t.Errorf("expected 2 host buckets, got %d", got)
	}
}

func TestHostLimiter_HonoursContext(t *testing.T) {
	// One token per 10s with burst 1: the second call must block
	lim := NewHostLimiter(0.1, 1)
	if err := lim.Wait(context.Background(), "https://autospot.example/"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := lim.Wait(ctx, "https://autospot.example/next"); err == nil {
		t.Fatal("expected second Wait to fail on context deadline")
	}
}

func TestHostLimiter_ZeroRateIsUnlimited(t *testing.T) {
	lim := NewHostLimiter(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := lim.Wait(ctx, "https://autospot.example/"); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}

func TestHostLimiter_InvalidURLPassesThrough(t *testing.T) {
	lim := NewHostLimiter(1, 1)
	if err := lim.Wait(context.Background(), "::not a url"); err != nil {
		t.Errorf("expected nil for unparsable URL, got %v", err)
	}
	if lim.Hosts() != 0 {
		t.Errorf("no bucket should be created for an invalid URL")
	}
}
