package pool

import (
	"errors"
	"math/big"
)

var (
	ErrPoolInsolvent = errors.New("pool blew up, no deposits allowed")
	ErrNoShares      = errors.New("no lp shares outstanding")
	ErrNoLiquidity   = errors.New("no liquid funds, all stuck in games or pool blew up")
	ErrMathOverflow  = errors.New("pool math overflow")
	ErrNotBot        = errors.New("caller is not the pool bot authority")
	ErrZeroAmount    = errors.New("zero amount")
)

// DepositShares prices a deposit. The pool's book value counts open-game
// exposure twice: the pool must be priced as if it wins every outstanding
// game, otherwise a depositor could snipe value from games about to
// settle. All intermediates are computed at full width; only the final
// share count is narrowed, and a narrowing failure is fatal.
func DepositShares(depositAmount, liquidBalance, exposure, lpSupply uint64) (uint64, error) {
	if depositAmount == 0 {
		return 0, ErrZeroAmount
	}

	// No shares outstanding means no prior claims to dilute, so the first
	// deposit sets a 1:1 rate regardless of any balance already parked in
	// the pool account.
	if lpSupply == 0 {
		return depositAmount, nil
	}

	deposits := new(big.Int).SetUint64(liquidBalance)
	doubled := new(big.Int).Lsh(new(big.Int).SetUint64(exposure), 1)
	deposits.Add(deposits, doubled)

	// Shares outstanding against an empty book: every depositor was wiped
	// out and the pool is unrecoverable.
	if deposits.Sign() == 0 {
		return 0, ErrPoolInsolvent
	}

	mint := new(big.Int).SetUint64(depositAmount)
	mint.Mul(mint, new(big.Int).SetUint64(lpSupply))
	mint.Div(mint, deposits)
	if !mint.IsUint64() {
		return 0, ErrMathOverflow
	}
	return mint.Uint64(), nil
}

// WithdrawAmount prices a redemption. Funds locked in open games are
// ignored: the pool is priced as if it loses every outstanding game, so a
// withdrawer can never take more than their worst-case claim.
func WithdrawAmount(withdrawShares, liquidBalance, lpSupply uint64) (uint64, error) {
	if withdrawShares == 0 {
		return 0, ErrZeroAmount
	}
	if lpSupply == 0 {
		return 0, ErrNoShares
	}
	if liquidBalance == 0 {
		return 0, ErrNoLiquidity
	}

	out := new(big.Int).SetUint64(withdrawShares)
	out.Mul(out, new(big.Int).SetUint64(liquidBalance))
	out.Div(out, new(big.Int).SetUint64(lpSupply))
	if !out.IsUint64() {
		return 0, ErrMathOverflow
	}
	return out.Uint64(), nil
}
