// Package pool implements the pooled-liquidity layer: depositors buy
// fungible LP shares priced against the pool's liquid balance plus its
// at-risk exposure in open games, and a designated bot plays games on the
// pool's behalf with the pooled capital.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/solanaGames/rps-go/ledger"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server/serverdb"
)

// GameDriver drives the game state machine on behalf of an identity. The
// server implements this; the pool never touches game state directly.
// ExpireGame matters because the pool authority has no signing key, so
// timeout claims on its games must be proxied through the engine.
type GameDriver interface {
	JoinGameAs(ctx context.Context, player rpsgame.PlayerID, gameID rpsgame.GameID,
		choice rpsgame.Choice, secret *uint64) (*rpsgame.Game, error)
	ExpireGame(ctx context.Context, caller rpsgame.PlayerID,
		gameID rpsgame.GameID) (*rpsgame.Game, error)
}

// Engine is the pool accounting engine. Deposits and withdrawals are
// serialized so a price quote and the fund movement it authorizes commit
// together.
type Engine struct {
	mu     sync.Mutex
	rec    *serverdb.PoolRecord
	db     serverdb.ServerDB
	ledger ledger.Ledger
	driver GameDriver
	log    slog.Logger
}

// Status is a read-only snapshot of the pool's balance sheet.
type Status struct {
	Seed          uint64             `json:"seed"`
	Authority     rpsgame.PlayerID   `json:"authority"`
	BotAuthority  rpsgame.PlayerID   `json:"bot_authority"`
	Asset         string             `json:"asset"`
	ShareAsset    string             `json:"share_asset"`
	LiquidBalance uint64             `json:"liquid_balance"`
	Exposure      uint64             `json:"exposure"`
	ShareSupply   uint64             `json:"share_supply"`
}

// CreatePool registers the pool record and the pool's own player-info
// ledger so its open-game exposure is visible to deposit pricing.
func CreatePool(ctx context.Context, db serverdb.ServerDB, seed uint64,
	authority, botAuthority rpsgame.PlayerID, asset string) (*serverdb.PoolRecord, error) {

	if _, err := db.FetchPool(ctx); err == nil {
		return nil, serverdb.ErrDuplicateEntry
	} else if !errors.Is(err, serverdb.ErrPoolNotFound) {
		return nil, err
	}

	rec := &serverdb.PoolRecord{
		Seed:         seed,
		Authority:    authority,
		BotAuthority: botAuthority,
		Asset:        asset,
		ShareAsset:   fmt.Sprintf("pool-share/%d", seed),
	}
	if err := db.SavePool(ctx, rec); err != nil {
		return nil, err
	}
	if err := db.SavePlayerInfo(ctx, rpsgame.NewPlayerInfo(authority, asset)); err != nil {
		return nil, err
	}
	return rec, nil
}

// NewEngine wires a loaded pool record to its collaborators.
func NewEngine(rec *serverdb.PoolRecord, db serverdb.ServerDB, l ledger.Ledger,
	driver GameDriver, log slog.Logger) *Engine {
	return &Engine{rec: rec, db: db, ledger: l, driver: driver, log: log}
}

// Record returns the pool's stored configuration.
func (e *Engine) Record() serverdb.PoolRecord {
	return *e.rec
}

func (e *Engine) poolAccount() ledger.Account {
	return ledger.PlayerAccount(e.rec.Authority)
}

func (e *Engine) balanceSheet(ctx context.Context) (liquid, exposure, supply uint64, err error) {
	liquid, err = e.ledger.Balance(ctx, e.rec.Asset, e.poolAccount())
	if err != nil {
		return 0, 0, 0, err
	}
	info, err := e.db.FetchPlayerInfo(ctx, e.rec.Authority, e.rec.Asset)
	switch {
	case err == nil:
		exposure = info.AmountInGames
	case errors.Is(err, serverdb.ErrPlayerInfoNotFound):
		// Pool never played; zero exposure.
	default:
		return 0, 0, 0, err
	}
	supply, err = e.ledger.Supply(ctx, e.rec.ShareAsset)
	if err != nil {
		return 0, 0, 0, err
	}
	return liquid, exposure, supply, nil
}

// Deposit moves amount from the depositor into the pool and mints LP
// shares at the current rate. The transfer and the mint land in one atomic
// batch.
func (e *Engine) Deposit(ctx context.Context, depositor rpsgame.PlayerID, amount uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	liquid, exposure, supply, err := e.balanceSheet(ctx)
	if err != nil {
		return 0, err
	}
	shares, err := DepositShares(amount, liquid, exposure, supply)
	if err != nil {
		return 0, err
	}

	batch := []ledger.Entry{
		{Op: ledger.OpTransfer, Asset: e.rec.Asset, From: ledger.PlayerAccount(depositor), To: e.poolAccount(), Amount: amount},
	}
	if shares > 0 {
		batch = append(batch, ledger.Entry{Op: ledger.OpMint, Asset: e.rec.ShareAsset,
			To: ledger.PlayerAccount(depositor), Amount: shares})
	}
	if err := e.ledger.Apply(ctx, batch); err != nil {
		return 0, err
	}
	e.log.Infof("pool deposit: depositor=%s amount=%d shares=%d supply=%d",
		depositor, amount, shares, supply+shares)
	return shares, nil
}

// Withdraw burns the holder's shares and pays out their worst-case claim
// on the liquid balance.
func (e *Engine) Withdraw(ctx context.Context, holder rpsgame.PlayerID, shares uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	liquid, _, supply, err := e.balanceSheet(ctx)
	if err != nil {
		return 0, err
	}
	out, err := WithdrawAmount(shares, liquid, supply)
	if err != nil {
		return 0, err
	}

	batch := []ledger.Entry{
		{Op: ledger.OpBurn, Asset: e.rec.ShareAsset, From: ledger.PlayerAccount(holder), Amount: shares},
	}
	if out > 0 {
		batch = append(batch, ledger.Entry{Op: ledger.OpTransfer, Asset: e.rec.Asset,
			From: e.poolAccount(), To: ledger.PlayerAccount(holder), Amount: out})
	}
	if err := e.ledger.Apply(ctx, batch); err != nil {
		return 0, err
	}
	e.log.Infof("pool withdraw: holder=%s shares=%d paid=%d", holder, shares, out)
	return out, nil
}

// BotPlay joins an open game as the pool. Only the configured bot
// authority may call this; the join itself runs through the same state
// machine and escrow path as any other player 2.
func (e *Engine) BotPlay(ctx context.Context, caller rpsgame.PlayerID, gameID rpsgame.GameID,
	choice rpsgame.Choice, secret *uint64) (*rpsgame.Game, error) {

	if caller != e.rec.BotAuthority {
		return nil, ErrNotBot
	}
	return e.driver.JoinGameAs(ctx, e.rec.Authority, gameID, choice, secret)
}

// BotExpire claims a timeout on a game the pool is player 2 in. Without
// this proxy an opponent withholding their reveal would lock the pool's
// wager forever, since the keyless pool authority can sign nothing
// itself.
func (e *Engine) BotExpire(ctx context.Context, caller rpsgame.PlayerID,
	gameID rpsgame.GameID) (*rpsgame.Game, error) {

	if caller != e.rec.BotAuthority {
		return nil, ErrNotBot
	}
	return e.driver.ExpireGame(ctx, e.rec.Authority, gameID)
}

// Snapshot returns the pool's current balance sheet.
func (e *Engine) Snapshot(ctx context.Context) (*Status, error) {
	liquid, exposure, supply, err := e.balanceSheet(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Seed:          e.rec.Seed,
		Authority:     e.rec.Authority,
		BotAuthority:  e.rec.BotAuthority,
		Asset:         e.rec.Asset,
		ShareAsset:    e.rec.ShareAsset,
		LiquidBalance: liquid,
		Exposure:      exposure,
		ShareSupply:   supply,
	}, nil
}
