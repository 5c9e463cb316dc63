package ledger

import (
	"context"
	"fmt"
	"sync"
)

type balanceKey struct {
	asset   string
	account Account
}

// MemLedger is the in-memory Ledger used by tests and by deployments that
// delegate durability elsewhere. All methods are safe for concurrent use.
type MemLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	supply   map[string]uint64
}

var _ Ledger = (*MemLedger)(nil)

func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances: make(map[balanceKey]uint64),
		supply:   make(map[string]uint64),
	}
}

func (l *MemLedger) Balance(_ context.Context, asset string, account Account) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{asset, account}], nil
}

func (l *MemLedger) Supply(_ context.Context, asset string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[asset], nil
}

func (l *MemLedger) Apply(_ context.Context, batch []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate the whole batch against scratch copies first so a failing
	// entry cannot leave earlier entries applied.
	balances := make(map[balanceKey]uint64, len(batch)*2)
	supply := make(map[string]uint64, len(batch))
	getBal := func(k balanceKey) uint64 {
		if v, ok := balances[k]; ok {
			return v
		}
		return l.balances[k]
	}
	getSup := func(asset string) uint64 {
		if v, ok := supply[asset]; ok {
			return v
		}
		return l.supply[asset]
	}

	for i, e := range batch {
		if e.Amount == 0 {
			return fmt.Errorf("entry %d: %w", i, ErrZeroAmount)
		}
		switch e.Op {
		case OpTransfer:
			if e.From == e.To {
				return fmt.Errorf("entry %d: %w", i, ErrSameAccount)
			}
			fk := balanceKey{e.Asset, e.From}
			tk := balanceKey{e.Asset, e.To}
			fb := getBal(fk)
			if fb < e.Amount {
				return fmt.Errorf("entry %d: %w", i, ErrInsufficientFunds)
			}
			tb := getBal(tk)
			if tb+e.Amount < tb {
				return fmt.Errorf("entry %d: %w", i, ErrAmountOverflow)
			}
			balances[fk] = fb - e.Amount
			balances[tk] = tb + e.Amount
		case OpMint:
			tk := balanceKey{e.Asset, e.To}
			tb := getBal(tk)
			sup := getSup(e.Asset)
			if tb+e.Amount < tb || sup+e.Amount < sup {
				return fmt.Errorf("entry %d: %w", i, ErrAmountOverflow)
			}
			balances[tk] = tb + e.Amount
			supply[e.Asset] = sup + e.Amount
		case OpBurn:
			fk := balanceKey{e.Asset, e.From}
			fb := getBal(fk)
			if fb < e.Amount {
				return fmt.Errorf("entry %d: %w", i, ErrInsufficientFunds)
			}
			sup := getSup(e.Asset)
			if sup < e.Amount {
				return fmt.Errorf("entry %d: %w", i, ErrSupplyUnderflow)
			}
			balances[fk] = fb - e.Amount
			supply[e.Asset] = sup - e.Amount
		default:
			return fmt.Errorf("entry %d: unknown op %d", i, e.Op)
		}
	}

	for k, v := range balances {
		if v == 0 {
			delete(l.balances, k)
		} else {
			l.balances[k] = v
		}
	}
	for asset, v := range supply {
		if v == 0 {
			delete(l.supply, asset)
		} else {
			l.supply[asset] = v
		}
	}
	return nil
}

func (l *MemLedger) CloseAccount(_ context.Context, asset string, account Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{asset, account}
	if l.balances[k] != 0 {
		return ErrAccountNotEmpty
	}
	delete(l.balances, k)
	return nil
}
