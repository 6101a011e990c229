package walletutil

import (
	"sync"
	"testing"
	"time"

	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
)

// TestQueueWalletActionRunsOneAtATime checks the serializer's core
// invariant: at most one action body for a given account executes at any
// instant, regardless of how many callers queue concurrently.
func TestQueueWalletActionRunsOneAtATime(t *testing.T) {
	s := NewActionSerializer(nil)
	var account crypto.PublicKey

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := make(chan struct{})
			s.QueueWalletAction(account, coretypes.NewBalance(1), func() {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				close(done)
			})
			<-done
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("observed %d actions in flight at once, want 1", maxInFlight)
	}
}

// TestQueueWalletActionPriorityByAmount checks that among actions queued
// while a runner is busy, the highest-amount one runs next, with ties
// broken by insertion order.
func TestQueueWalletActionPriorityByAmount(t *testing.T) {
	s := NewActionSerializer(nil)
	var account crypto.PublicKey

	var mu sync.Mutex
	var order []string

	release := make(chan struct{})
	done := make(chan struct{})

	// This call becomes the runner and blocks on release, giving the test
	// time to queue the rest behind it.
	go s.QueueWalletAction(account, coretypes.NewBalance(0), func() {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		<-release
	})
	time.Sleep(20 * time.Millisecond)

	queue := func(label string, amount uint64) {
		s.QueueWalletAction(account, coretypes.NewBalance(amount), func() {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			if label == "last" {
				close(done)
			}
		})
	}
	queue("low-a", 10)
	queue("high", 100)
	queue("low-b", 10) // ties with low-a; low-a was queued first
	queue("last", 0)

	close(release)
	<-done

	want := []string{"first", "high", "low-a", "low-b", "last"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("execution order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

// TestQueueWalletActionIndependentAccounts checks that actions for
// different accounts never block each other.
func TestQueueWalletActionIndependentAccounts(t *testing.T) {
	s := NewActionSerializer(nil)
	a := crypto.PublicKey{0x01}
	b := crypto.PublicKey{0x02}

	blockA := make(chan struct{})
	doneB := make(chan struct{})

	go s.QueueWalletAction(a, coretypes.NewBalance(1), func() {
		<-blockA
	})
	time.Sleep(10 * time.Millisecond)

	go s.QueueWalletAction(b, coretypes.NewBalance(1), func() {
		close(doneB)
	})

	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("account b's action never ran while account a's runner was blocked")
	}
	close(blockA)
}
