package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	balancesBucket = []byte("balances")
	supplyBucket   = []byte("supply")
)

// BoltLedger stores balances in bbolt. Every Apply runs inside a single
// write transaction, which gives the all-or-nothing batch semantics for
// free.
type BoltLedger struct {
	db *bolt.DB
}

var _ Ledger = (*BoltLedger)(nil)

// NewBoltLedger wraps an open bbolt database. The database may be shared
// with other subsystems; the ledger owns only its own buckets.
func NewBoltLedger(db *bolt.DB) (*BoltLedger, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{balancesBucket, supplyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger buckets: %w", err)
	}
	return &BoltLedger{db: db}, nil
}

func balanceBucketKey(asset string, account Account) []byte {
	return []byte(asset + "|" + string(account))
}

func getU64(b *bolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func putU64(b *bolt.Bucket, key []byte, v uint64) error {
	if v == 0 {
		return b.Delete(key)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return b.Put(key, buf[:])
}

func (l *BoltLedger) Balance(_ context.Context, asset string, account Account) (uint64, error) {
	var out uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		out = getU64(tx.Bucket(balancesBucket), balanceBucketKey(asset, account))
		return nil
	})
	return out, err
}

func (l *BoltLedger) Supply(_ context.Context, asset string) (uint64, error) {
	var out uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		out = getU64(tx.Bucket(supplyBucket), []byte(asset))
		return nil
	})
	return out, err
}

func (l *BoltLedger) Apply(_ context.Context, batch []Entry) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		balances := tx.Bucket(balancesBucket)
		supply := tx.Bucket(supplyBucket)
		for i, e := range batch {
			if e.Amount == 0 {
				return fmt.Errorf("entry %d: %w", i, ErrZeroAmount)
			}
			switch e.Op {
			case OpTransfer:
				if e.From == e.To {
					return fmt.Errorf("entry %d: %w", i, ErrSameAccount)
				}
				fk := balanceBucketKey(e.Asset, e.From)
				tk := balanceBucketKey(e.Asset, e.To)
				fb := getU64(balances, fk)
				if fb < e.Amount {
					return fmt.Errorf("entry %d: %w", i, ErrInsufficientFunds)
				}
				tb := getU64(balances, tk)
				if tb+e.Amount < tb {
					return fmt.Errorf("entry %d: %w", i, ErrAmountOverflow)
				}
				if err := putU64(balances, fk, fb-e.Amount); err != nil {
					return err
				}
				if err := putU64(balances, tk, tb+e.Amount); err != nil {
					return err
				}
			case OpMint:
				tk := balanceBucketKey(e.Asset, e.To)
				tb := getU64(balances, tk)
				sup := getU64(supply, []byte(e.Asset))
				if tb+e.Amount < tb || sup+e.Amount < sup {
					return fmt.Errorf("entry %d: %w", i, ErrAmountOverflow)
				}
				if err := putU64(balances, tk, tb+e.Amount); err != nil {
					return err
				}
				if err := putU64(supply, []byte(e.Asset), sup+e.Amount); err != nil {
					return err
				}
			case OpBurn:
				fk := balanceBucketKey(e.Asset, e.From)
				fb := getU64(balances, fk)
				if fb < e.Amount {
					return fmt.Errorf("entry %d: %w", i, ErrInsufficientFunds)
				}
				sup := getU64(supply, []byte(e.Asset))
				if sup < e.Amount {
					return fmt.Errorf("entry %d: %w", i, ErrSupplyUnderflow)
				}
				if err := putU64(balances, fk, fb-e.Amount); err != nil {
					return err
				}
				if err := putU64(supply, []byte(e.Asset), sup-e.Amount); err != nil {
					return err
				}
			default:
				return fmt.Errorf("entry %d: unknown op %d", i, e.Op)
			}
		}
		return nil
	})
}

func (l *BoltLedger) CloseAccount(_ context.Context, asset string, account Account) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		balances := tx.Bucket(balancesBucket)
		key := balanceBucketKey(asset, account)
		if getU64(balances, key) != 0 {
			return ErrAccountNotEmpty
		}
		return balances.Delete(key)
	})
}
