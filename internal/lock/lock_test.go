package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryMutualExclusion(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "Math101|123|2024-01-08")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer unlock()
			// Unsynchronized increment; the lock is the only protection.
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != workers {
		t.Fatalf("lost updates under lock: got %d, want %d", counter, workers)
	}
}

func TestInMemoryIndependentKeys(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}

func TestInMemoryContextCancel(t *testing.T) {
	l := NewInMemory()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); err == nil {
		t.Fatal("expected context error while key is held")
	}
}

func TestInMemoryCleansUpEntries(t *testing.T) {
	l := NewInMemory()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	unlock()
	unlock() // double release is a no-op

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.keys) != 0 {
		t.Fatalf("expected empty key table, got %d entries", len(l.keys))
	}
}
