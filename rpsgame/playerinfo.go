package rpsgame

import "math"

// PlayerInfo is the running ledger kept per (owner, asset) pair. It is
// updated alongside every state transition: exposure and lifetime wagering
// grow on create/join, and settlement releases exposure exactly once per
// participant while adjusting the win/loss/draw record.
type PlayerInfo struct {
	Owner PlayerID `json:"owner"`
	Asset string   `json:"asset"`

	GamesWon   uint64 `json:"games_won"`
	GamesDrawn uint64 `json:"games_drawn"`
	GamesLost  uint64 `json:"games_lost"`

	// LifetimeWagering only ever grows. LifetimeEarnings is signed and can
	// go negative.
	LifetimeWagering uint64 `json:"lifetime_wagering"`
	LifetimeEarnings int64  `json:"lifetime_earnings"`

	// AmountInGames is the owner's current exposure across unsettled games.
	AmountInGames uint64 `json:"amount_in_games"`
}

// NewPlayerInfo creates the zeroed record for an (owner, asset) pair.
func NewPlayerInfo(owner PlayerID, asset string) *PlayerInfo {
	return &PlayerInfo{Owner: owner, Asset: asset}
}

// RecordWager books a new stake entering escrow on create or join.
func (pi *PlayerInfo) RecordWager(amount uint64) error {
	inGames, ok := checkedAddU64(pi.AmountInGames, amount)
	if !ok {
		return ErrBetTooLarge
	}
	lifetime, ok := checkedAddU64(pi.LifetimeWagering, amount)
	if !ok {
		return ErrBetTooLarge
	}
	pi.AmountInGames = inGames
	pi.LifetimeWagering = lifetime
	return nil
}

// ReleaseWager drops settled exposure. Exposure going negative means the
// create/join bookkeeping was wrong somewhere; that is an integrity error,
// not a user error.
func (pi *PlayerInfo) ReleaseWager(amount uint64) error {
	if pi.AmountInGames < amount {
		return ErrMathOverflow
	}
	pi.AmountInGames -= amount
	return nil
}

// RecordWin books a won contest worth the opponent's wager.
func (pi *PlayerInfo) RecordWin(wager uint64) error {
	earnings, ok := checkedAddEarnings(pi.LifetimeEarnings, wager)
	if !ok {
		return ErrMathOverflow
	}
	pi.GamesWon++
	pi.LifetimeEarnings = earnings
	return nil
}

// RecordLoss books a lost contest worth the player's own wager.
func (pi *PlayerInfo) RecordLoss(wager uint64) error {
	earnings, ok := checkedSubEarnings(pi.LifetimeEarnings, wager)
	if !ok {
		return ErrMathOverflow
	}
	pi.GamesLost++
	pi.LifetimeEarnings = earnings
	return nil
}

// RecordDraw books a tie. Earnings are unchanged.
func (pi *PlayerInfo) RecordDraw() {
	pi.GamesDrawn++
}

func checkedAddU64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

func checkedAddEarnings(earnings int64, wager uint64) (int64, bool) {
	if wager > math.MaxInt64 {
		return 0, false
	}
	sum := earnings + int64(wager)
	if sum < earnings {
		return 0, false
	}
	return sum, true
}

func checkedSubEarnings(earnings int64, wager uint64) (int64, bool) {
	if wager > math.MaxInt64 {
		return 0, false
	}
	diff := earnings - int64(wager)
	if diff > earnings {
		return 0, false
	}
	return diff, true
}
