package usecase

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestConversationLockerBasic(t *testing.T) {
	cl := NewConversationLocker()

	unlock, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if cl.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", cl.ActiveCount())
	}

	unlock()

	// After unlock, the key should be cleaned up.
	if cl.ActiveCount() != 0 {
		t.Errorf("ActiveCount after unlock = %d, want 0", cl.ActiveCount())
	}
}

func TestConversationLockerSameKeyOrdering(t *testing.T) {
	cl := NewConversationLocker()

	unlock1, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock1: %v", err)
	}

	order := make(chan int, 2)

	// Second caller for the same key must block until the first releases.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock2, err := cl.Lock(context.Background(), "user:1")
		if err != nil {
			t.Errorf("Lock2: %v", err)
			return
		}
		order <- 2
		unlock2()
	}()

	// Give the second caller time to block.
	time.Sleep(50 * time.Millisecond)

	order <- 1
	unlock1()
	wg.Wait()

	if first := <-order; first != 1 {
		t.Errorf("completion order started with %d, want 1", first)
	}
	if second := <-order; second != 2 {
		t.Errorf("completion order ended with %d, want 2", second)
	}
}

func TestConversationLockerDifferentKeysConcurrent(t *testing.T) {
	cl := NewConversationLocker()

	unlock1, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock user:1: %v", err)
	}
	defer unlock1()

	// A different key must not block even while the first is held.
	done := make(chan struct{})
	go func() {
		unlock2, err := cl.Lock(context.Background(), "group:g-1")
		if err != nil {
			t.Errorf("Lock group:g-1: %v", err)
			return
		}
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestConversationLockerFailureDoesNotPoison(t *testing.T) {
	cl := NewConversationLocker()

	// First operation fails after acquiring; the key must still work.
	unlock, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	func() {
		defer unlock()
		// Simulated operation failure; unlock still runs via defer.
	}()

	unlock2, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock after failure: %v", err)
	}
	unlock2()
}

func TestConversationLockerContextCancel(t *testing.T) {
	cl := NewConversationLocker()

	unlock1, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cl.Lock(ctx, "user:1"); err == nil {
		t.Fatal("Lock with cancelled context succeeded")
	}

	unlock1()

	// The abandoned waiter must not leave a permanently held lock.
	deadline := time.Now().Add(time.Second)
	for cl.ActiveCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	unlock2, err := cl.Lock(context.Background(), "user:1")
	if err != nil {
		t.Fatalf("Lock after cancelled waiter: %v", err)
	}
	unlock2()
}
