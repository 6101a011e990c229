package walletutil

import (
	"context"
	"time"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
	"github.com/raiblocks/walletcore/wallet"
)

// PendingScanner walks a ledger's pending-block index looking for sends
// whose destination is held by one of a registry's wallets, and queues a
// receive action for each one it can act on.
type PendingScanner struct {
	ledger  coretypes.Ledger
	wallets *Wallets
	log     *persist.Logger
}

// NewPendingScanner creates a scanner over wallets' registered wallets.
// log may be nil.
func NewPendingScanner(ledger coretypes.Ledger, wallets *Wallets, log *persist.Logger) *PendingScanner {
	return &PendingScanner{ledger: ledger, wallets: wallets, log: log}
}

// ScanOnce walks the ledger's pending index exactly once. It holds no
// long-lived lock: each entry's wallet lookup and key fetch runs inside
// its own short transaction, and the receive action itself is dispatched
// to run independently rather than inline, so one slow or stuck account
// cannot stall the rest of the scan.
func (s *PendingScanner) ScanOnce(ctx context.Context) error {
	return s.ledger.PendingIterate(func(sendHash coretypes.BlockHash, entry coretypes.PendingEntry) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// sendHash and entry are this call's own parameters, not a loop
		// variable some earlier iteration left stale, so the block this
		// entry resolves to is always the one just iterated.
		return s.handleEntry(sendHash, entry)
	})
}

// ScanPeriodic runs ScanOnce on every tick of interval until ctx is
// canceled, mirroring the original implementation's recurring background
// re-scan of the pending table alongside its on-demand scan.
func (s *PendingScanner) ScanPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil && s.log != nil {
				s.log.Printf("pending scan: periodic scan failed: %v", err)
			}
		}
	}
}

func (s *PendingScanner) handleEntry(sendHash coretypes.BlockHash, entry coretypes.PendingEntry) error {
	var target *wallet.Wallet
	var prv crypto.SecretKey
	var representative crypto.PublicKey
	var claimed bool

	err := s.wallets.DB().View(func(tx *bolt.Tx) error {
		w, ok, err := s.wallets.FindByAccount(tx, entry.Destination)
		if err != nil || !ok {
			return err
		}
		store := w.Store()
		valid, err := store.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			if s.log != nil {
				s.log.Printf("pending scan: skipping locked wallet for %x", entry.Destination)
			}
			return nil
		}
		if prv, err = store.Fetch(tx, entry.Destination); err != nil {
			return err
		}
		if representative, err = store.Representative(tx); err != nil {
			crypto.SecureWipe(prv[:])
			return err
		}
		target = w
		claimed = true
		return nil
	})
	if err != nil || !claimed {
		return err
	}

	go func() {
		defer crypto.SecureWipe(prv[:])
		if err := target.ReceiveActionSync(sendHash, entry.Destination, entry.Amount, prv, representative); err != nil && s.log != nil {
			s.log.Printf("pending scan: receive action failed for %x: %v", entry.Destination, err)
		}
	}()
	return nil
}
