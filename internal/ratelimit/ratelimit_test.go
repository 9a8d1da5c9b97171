package ratelimit

import (
	"sync"
	"testing"
)

func TestBurstThenDeny(t *testing.T) {
	limiter := NewPerUser(3, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alice") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if limiter.Allow("alice") {
		t.Error("request beyond burst allowed")
	}
}

func TestUsersAreIsolated(t *testing.T) {
	limiter := NewPerUser(3, 3)

	for i := 0; i < 3; i++ {
		limiter.Allow("alice")
	}
	if limiter.Allow("alice") {
		t.Fatal("alice's burst not exhausted")
	}
	if !limiter.Allow("bob") {
		t.Error("bob denied by alice's consumption")
	}
}

func TestConcurrentAccessIsSafe(t *testing.T) {
	limiter := NewPerUser(1000, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			users := []string{"alice", "bob", "carol"}
			for j := 0; j < 20; j++ {
				limiter.Allow(users[(n+j)%len(users)])
			}
		}(i)
	}
	wg.Wait()
}
