// Package walletutil hosts the multi-wallet registry, the per-account
// action serializer that makes "fetch head, sign, publish, cache work"
// atomic from a caller's point of view, and the pending-block scan that
// turns ledger activity into queued receive actions.
package walletutil

import (
	"sync"

	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
)

// Observer is notified with active=true before each action runs for an
// account, and with active=false once that account's runner has drained
// its queue and exits.
type Observer func(account crypto.PublicKey, active bool)

type queuedAction struct {
	amount coretypes.Balance
	action func()
	seq    uint64
}

// ActionSerializer ensures at most one action body runs per account at
// any instant, and that among actions queued while an account is busy,
// the highest-amount one runs next — large user-initiated sends jump
// ahead of small automated receives.
type ActionSerializer struct {
	mu       sync.Mutex
	observer Observer
	current  map[crypto.PublicKey]bool
	pending  map[crypto.PublicKey][]queuedAction
	seq      uint64
}

// NewActionSerializer creates a serializer. observer may be nil.
func NewActionSerializer(observer Observer) *ActionSerializer {
	return &ActionSerializer{
		observer: observer,
		current:  make(map[crypto.PublicKey]bool),
		pending:  make(map[crypto.PublicKey][]queuedAction),
	}
}

// QueueWalletAction runs action immediately if account has no action
// in-flight, making the calling goroutine the runner; otherwise it queues
// action to run once the current runner drains its queue.
func (s *ActionSerializer) QueueWalletAction(account crypto.PublicKey, amount coretypes.Balance, action func()) {
	s.mu.Lock()
	if s.current[account] {
		s.seq++
		s.pending[account] = append(s.pending[account], queuedAction{amount: amount, action: action, seq: s.seq})
		s.mu.Unlock()
		return
	}
	s.current[account] = true
	s.mu.Unlock()
	s.run(account, action)
}

// run is the runner loop: invoke action, then keep draining account's
// pending queue (highest amount first) until it is empty.
func (s *ActionSerializer) run(account crypto.PublicKey, action func()) {
	for {
		s.notify(account, true)
		action()

		s.mu.Lock()
		next, ok := s.popHighest(account)
		if !ok {
			delete(s.current, account)
			s.mu.Unlock()
			s.notify(account, false)
			return
		}
		s.mu.Unlock()
		action = next
	}
}

// popHighest removes and returns the highest-amount queued action for
// account, ties broken toward whichever was queued first.
func (s *ActionSerializer) popHighest(account crypto.PublicKey) (func(), bool) {
	q := s.pending[account]
	if len(q) == 0 {
		return nil, false
	}
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i].amount.Cmp(&q[best].amount.Int) > 0 {
			best = i
		}
	}
	chosen := q[best]
	q = append(q[:best], q[best+1:]...)
	if len(q) == 0 {
		delete(s.pending, account)
	} else {
		s.pending[account] = q
	}
	return chosen.action, true
}

func (s *ActionSerializer) notify(account crypto.PublicKey, active bool) {
	if s.observer != nil {
		s.observer(account, active)
	}
}
