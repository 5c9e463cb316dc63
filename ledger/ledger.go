// Package ledger holds asset-denominated balances and moves funds
// atomically. It is the only component allowed to create or destroy value:
// games escrow through Transfer entries, and the pool's share asset is
// issued and redeemed through Mint/Burn entries.
package ledger

import (
	"context"
	"errors"

	"github.com/companyzero/bisonrelay/zkidentity"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("transfer from an account to itself")
	ErrAmountOverflow    = errors.New("balance overflow")
	ErrSupplyUnderflow   = errors.New("burn exceeds supply")
	ErrAccountNotEmpty   = errors.New("account still holds funds")
	ErrZeroAmount        = errors.New("zero amount")
)

// Account names a balance holder. Player accounts are their 32-byte
// identity in hex; protocol-owned accounts use derived names so they can
// never collide with a player.
type Account string

// PlayerAccount is the spendable account of a registered identity.
func PlayerAccount(id zkidentity.ShortID) Account {
	return Account("player/" + id.String())
}

// EscrowAccount holds a single game's stakes between create and settle.
func EscrowAccount(gameID zkidentity.ShortID) Account {
	return Account("escrow/" + gameID.String())
}

// Op is the kind of a batch entry.
type Op uint8

const (
	OpTransfer Op = iota
	OpMint
	OpBurn
)

// Entry is one fund movement. Transfer moves Amount of Asset From -> To;
// Mint issues to To; Burn destroys from From.
type Entry struct {
	Op     Op
	Asset  string
	From   Account
	To     Account
	Amount uint64
}

// Ledger is the escrow collaborator. Apply is all-or-nothing: either every
// entry in the batch lands or none do, so a settlement can never leave a
// game half paid.
type Ledger interface {
	Balance(ctx context.Context, asset string, account Account) (uint64, error)
	Supply(ctx context.Context, asset string) (uint64, error)
	Apply(ctx context.Context, batch []Entry) error

	// CloseAccount removes an empty account record. Closing an account
	// that still holds funds fails with ErrAccountNotEmpty.
	CloseAccount(ctx context.Context, asset string, account Account) error
}

// Transfer is a single-entry convenience over Apply.
func Transfer(ctx context.Context, l Ledger, asset string, from, to Account, amount uint64) error {
	return l.Apply(ctx, []Entry{{Op: OpTransfer, Asset: asset, From: from, To: to, Amount: amount}})
}

// Mint is a single-entry convenience over Apply.
func Mint(ctx context.Context, l Ledger, asset string, to Account, amount uint64) error {
	return l.Apply(ctx, []Entry{{Op: OpMint, Asset: asset, To: to, Amount: amount}})
}

// Burn is a single-entry convenience over Apply.
func Burn(ctx context.Context, l Ledger, asset string, from Account, amount uint64) error {
	return l.Apply(ctx, []Entry{{Op: OpBurn, Asset: asset, From: from, Amount: amount}})
}
