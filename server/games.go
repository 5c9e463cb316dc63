package server

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/solanaGames/rps-go/ledger"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server/serverdb"
)

// playerInfo loads a player's per-asset stats, creating a zeroed record on
// first contact.
func (s *Server) playerInfo(ctx context.Context, owner rpsgame.PlayerID) (*rpsgame.PlayerInfo, error) {
	info, err := s.db.FetchPlayerInfo(ctx, owner, s.cfg.Asset)
	if errors.Is(err, serverdb.ErrPlayerInfoNotFound) {
		return rpsgame.NewPlayerInfo(owner, s.cfg.Asset), nil
	}
	return info, err
}

// unwindEscrow returns escrowed funds to a player after a failure that
// must not leave them locked. An unwind that itself fails leaves the
// funds parked on the escrow account for manual recovery, so it is
// logged at critical.
func (s *Server) unwindEscrow(ctx context.Context, gameID rpsgame.GameID, asset string,
	to ledger.Account, amount uint64) {

	err := ledger.Transfer(ctx, s.ledger, asset, ledger.EscrowAccount(gameID), to, amount)
	if err != nil {
		s.log.Criticalf("unwind escrow for game %s: %v (%s stuck in escrow)",
			gameID, err, dcrutil.Amount(amount))
	}
}

// CreateGame opens a challenge. Player 1's wager plus the origination fee
// move into the game's escrow account before anything is persisted; if the
// escrow transfer or persistence fails the registration is rolled back and
// the funds return to the player.
func (s *Server) CreateGame(ctx context.Context, player rpsgame.PlayerID, seed uint64,
	commitment rpsgame.Commitment, wager uint64, entryProof *rpsgame.EntryProof) (*rpsgame.Game, error) {

	if wager < s.cfg.MinWager {
		return nil, fmt.Errorf("%w: %d < %d", ErrWagerTooSmall, wager, s.cfg.MinWager)
	}
	fee, err := rpsgame.FeeFor(wager)
	if err != nil {
		return nil, err
	}
	total := wager + fee
	if total < wager {
		return nil, rpsgame.ErrBetTooLarge
	}

	id := rpsgame.GameIDFromSeed(seed)
	next, err := rpsgame.Apply(id, rpsgame.Initialized(), rpsgame.CreateGame{
		Player1:    player,
		Commitment: commitment,
		Config:     rpsgame.GameConfig{WagerAmount: wager, EntryProof: entryProof},
	}, s.clock.NowSlot())
	if err != nil {
		return nil, err
	}

	info, err := s.playerInfo(ctx, player)
	if err != nil {
		return nil, err
	}
	if err := info.RecordWager(wager); err != nil {
		return nil, err
	}

	game := &rpsgame.Game{Seed: seed, ID: id, Asset: s.cfg.Asset, FeeAmount: fee, State: next}
	if err := s.games.Register(game); err != nil {
		return nil, err
	}
	err = ledger.Transfer(ctx, s.ledger, s.cfg.Asset,
		ledger.PlayerAccount(player), ledger.EscrowAccount(id), total)
	if err != nil {
		s.games.Remove(id)
		return nil, err
	}

	if err := s.db.SaveGame(ctx, game); err != nil {
		s.games.Remove(id)
		s.unwindEscrow(ctx, id, game.Asset, ledger.PlayerAccount(player), total)
		return nil, fmt.Errorf("persist game %s: %w", id, err)
	}
	if err := s.db.SavePlayerInfo(ctx, info); err != nil {
		s.games.Remove(id)
		if derr := s.db.DeleteGame(ctx, id); derr != nil {
			s.log.Errorf("delete game %s during rollback: %v", id, derr)
		}
		s.unwindEscrow(ctx, id, game.Asset, ledger.PlayerAccount(player), total)
		return nil, fmt.Errorf("persist player info %s: %w", player, err)
	}

	s.log.Infof("game created: id=%s player1=%s wager=%s fee=%s public=%v",
		id, player, dcrutil.Amount(wager), dcrutil.Amount(fee), game.State.Config.Public())
	s.sink.GameStart(newGameStartEvent(game))

	cp := *game
	return &cp, nil
}

// JoinGameAs admits player 2 into an open challenge, escrowing their
// wager. The pool engine calls this on behalf of the pool authority; the
// HTTP surface calls it for ordinary players.
func (s *Server) JoinGameAs(ctx context.Context, player rpsgame.PlayerID, gameID rpsgame.GameID,
	choice rpsgame.Choice, secret *uint64) (*rpsgame.Game, error) {

	var out *rpsgame.Game
	err := s.games.WithGame(gameID, func(g *rpsgame.Game) error {
		next, err := rpsgame.Apply(g.ID, g.State, rpsgame.JoinGame{
			Player2: player, Choice: choice, Secret: secret,
		}, s.clock.NowSlot())
		if err != nil {
			return err
		}

		info, err := s.playerInfo(ctx, player)
		if err != nil {
			return err
		}
		orig := *info
		if err := info.RecordWager(g.Wager()); err != nil {
			return err
		}
		err = ledger.Transfer(ctx, s.ledger, g.Asset,
			ledger.PlayerAccount(player), ledger.EscrowAccount(g.ID), g.Wager())
		if err != nil {
			return err
		}

		// Persist before mutating memory: if either write fails the
		// wager comes straight back out of escrow and the challenge
		// stays open for the next joiner.
		if err := s.db.SavePlayerInfo(ctx, info); err != nil {
			s.unwindEscrow(ctx, g.ID, g.Asset, ledger.PlayerAccount(player), g.Wager())
			return fmt.Errorf("persist player info %s: %w", player, err)
		}
		cp := *g
		cp.State = next
		if err := s.db.SaveGame(ctx, &cp); err != nil {
			if perr := s.db.SavePlayerInfo(ctx, &orig); perr != nil {
				s.log.Errorf("restore player info %s during rollback: %v", player, perr)
			}
			s.unwindEscrow(ctx, g.ID, g.Asset, ledger.PlayerAccount(player), g.Wager())
			return fmt.Errorf("persist game %s: %w", g.ID, err)
		}
		g.State = next

		s.log.Infof("game joined: id=%s player2=%s choice=%s wager=%s",
			g.ID, player, choice, dcrutil.Amount(g.Wager()))
		out = &cp
		return nil
	})
	return out, err
}

// Reveal opens player 1's commitment and decides the round.
func (s *Server) Reveal(ctx context.Context, player rpsgame.PlayerID, gameID rpsgame.GameID,
	salt uint64, choice rpsgame.Choice) (*rpsgame.Game, error) {

	var out *rpsgame.Game
	err := s.games.WithGame(gameID, func(g *rpsgame.Game) error {
		next, err := rpsgame.Apply(g.ID, g.State, rpsgame.Reveal{
			Player1: player, Salt: salt, Choice: choice,
		}, s.clock.NowSlot())
		if err != nil {
			return err
		}
		cp := *g
		cp.State = next
		if err := s.db.SaveGame(ctx, &cp); err != nil {
			return fmt.Errorf("persist game %s: %w", g.ID, err)
		}
		g.State = next
		s.log.Infof("game revealed: id=%s choice=%s result=%s", g.ID, choice, g.State.Result)
		out = &cp
		return nil
	})
	return out, err
}

// ExpireGame forfeits a timed-out waiting state in the caller's favor.
func (s *Server) ExpireGame(ctx context.Context, caller rpsgame.PlayerID,
	gameID rpsgame.GameID) (*rpsgame.Game, error) {

	var out *rpsgame.Game
	err := s.games.WithGame(gameID, func(g *rpsgame.Game) error {
		next, err := rpsgame.Apply(g.ID, g.State, rpsgame.ExpireGame{Caller: caller},
			s.clock.NowSlot())
		if err != nil {
			return err
		}
		cp := *g
		cp.State = next
		if err := s.db.SaveGame(ctx, &cp); err != nil {
			return fmt.Errorf("persist game %s: %w", g.ID, err)
		}
		g.State = next
		s.log.Infof("game expired: id=%s caller=%s result=%s", g.ID, caller, g.State.Result)
		out = &cp
		return nil
	})
	return out, err
}

// settlementPlan is a fully computed settlement: every fund movement and
// every stats record it implies, built before anything is touched.
type settlementPlan struct {
	entries []ledger.Entry
	infos   []*rpsgame.PlayerInfo
}

// buildSettlementPlan turns a decided game into its payout batch and
// post-settlement player stats. Pure with respect to server state; errors
// here leave the game untouched.
func (s *Server) buildSettlementPlan(ctx context.Context, game *rpsgame.Game,
	settled rpsgame.GameState) (*settlementPlan, error) {

	wager := game.Wager()
	escrow := ledger.EscrowAccount(game.ID)
	p1 := settled.Player1.ID
	p2 := settled.Player2.ID
	selfPlay := settled.SelfPlay()

	// Participants escrowed real funds, so a missing stats record here
	// means the books are corrupt.
	p1Info, err := s.db.FetchPlayerInfo(ctx, p1, game.Asset)
	if err != nil {
		return nil, fmt.Errorf("settle %s: player 1 stats: %w", game.ID, err)
	}
	if err := p1Info.ReleaseWager(wager); err != nil {
		return nil, fmt.Errorf("settle %s: player 1 exposure: %w", game.ID, err)
	}
	plan := &settlementPlan{infos: []*rpsgame.PlayerInfo{p1Info}}

	var p2Info *rpsgame.PlayerInfo
	if !selfPlay {
		p2Info, err = s.db.FetchPlayerInfo(ctx, p2, game.Asset)
		if err != nil {
			return nil, fmt.Errorf("settle %s: player 2 stats: %w", game.ID, err)
		}
		if err := p2Info.ReleaseWager(wager); err != nil {
			return nil, fmt.Errorf("settle %s: player 2 exposure: %w", game.ID, err)
		}
		plan.infos = append(plan.infos, p2Info)
	}

	transfer := func(to ledger.Account, amount uint64) {
		plan.entries = append(plan.entries, ledger.Entry{
			Op: ledger.OpTransfer, Asset: game.Asset, From: escrow, To: to, Amount: amount,
		})
	}

	switch {
	case selfPlay:
		// Nobody showed up: player 1 takes back the single escrowed wager.
		transfer(ledger.PlayerAccount(p1), wager)

	case settled.Result == rpsgame.WinnerTie:
		transfer(ledger.PlayerAccount(p1), wager)
		transfer(ledger.PlayerAccount(p2), wager)
		p1Info.RecordDraw()
		p2Info.RecordDraw()

	default:
		if wager > math.MaxUint64/2 {
			return nil, rpsgame.ErrMathOverflow
		}
		pot := 2 * wager
		if settled.Result == rpsgame.WinnerP1 {
			transfer(ledger.PlayerAccount(p1), pot)
			if err := p1Info.RecordWin(wager); err != nil {
				return nil, err
			}
			if err := p2Info.RecordLoss(wager); err != nil {
				return nil, err
			}
		} else {
			transfer(ledger.PlayerAccount(p2), pot)
			if err := p2Info.RecordWin(wager); err != nil {
				return nil, err
			}
			if err := p1Info.RecordLoss(wager); err != nil {
				return nil, err
			}
		}
	}

	if game.FeeAmount > 0 {
		transfer(s.cfg.FeeAccount, game.FeeAmount)
	}
	return plan, nil
}

// Settle pays out a decided game. The entire settlement is computed
// first, then committed: the payout batch lands atomically on the ledger
// and only then do state and stats persist. A failure at any point leaves
// the game still settleable.
func (s *Server) Settle(ctx context.Context, gameID rpsgame.GameID) (*rpsgame.Game, error) {
	var out *rpsgame.Game
	err := s.games.WithGame(gameID, func(g *rpsgame.Game) error {
		next, err := rpsgame.Apply(g.ID, g.State, rpsgame.Settle{}, s.clock.NowSlot())
		if err != nil {
			return err
		}
		plan, err := s.buildSettlementPlan(ctx, g, next)
		if err != nil {
			return err
		}
		if err := s.ledger.Apply(ctx, plan.entries); err != nil {
			return err
		}

		// Past this point the payouts are committed and cannot be
		// unwound; the ledger, not this record, is the source of truth
		// for funds. Memory moves to settled so a retry cannot pay out
		// twice, and persistence failures surface for reconciliation.
		g.State = next
		if err := s.db.SaveGame(ctx, g); err != nil {
			return fmt.Errorf("persist settled game %s: %w", g.ID, err)
		}
		for _, info := range plan.infos {
			if err := s.db.SavePlayerInfo(ctx, info); err != nil {
				return fmt.Errorf("persist player info %s: %w", info.Owner, err)
			}
		}

		s.log.Infof("game settled: id=%s result=%s wager=%s fee=%s selfplay=%v",
			g.ID, g.State.Result, dcrutil.Amount(g.Wager()),
			dcrutil.Amount(g.FeeAmount), g.State.SelfPlay())
		cp := *g
		out = &cp
		return nil
	})
	return out, err
}

// CleanGame retires a settled game: the terminal event is emitted, the
// empty escrow account is closed, and the record leaves both the database
// and the runtime registry. Operator only.
func (s *Server) CleanGame(ctx context.Context, caller rpsgame.PlayerID,
	gameID rpsgame.GameID) (*ReadableGameEvent, error) {

	if caller != s.cfg.Operator && (s.cfg.Cleaner == nil || caller != *s.cfg.Cleaner) {
		return nil, ErrNotCleaner
	}

	var ev *ReadableGameEvent
	err := s.games.WithGame(gameID, func(g *rpsgame.Game) error {
		if g.State.Phase != rpsgame.PhaseSettled {
			return ErrNotSettled
		}
		if err := s.ledger.CloseAccount(ctx, g.Asset, ledger.EscrowAccount(g.ID)); err != nil {
			return err
		}
		ev = newGameResultEvent(g)
		return s.db.DeleteGame(ctx, g.ID)
	})
	if err != nil {
		return nil, err
	}
	s.games.Remove(gameID)
	s.sink.GameResult(ev)
	s.log.Infof("game cleaned: id=%s", gameID)
	return ev, nil
}

// Game returns a copy of a live game record.
func (s *Server) Game(gameID rpsgame.GameID) (*rpsgame.Game, error) {
	g := s.games.Snapshot(gameID)
	if g == nil {
		return nil, rpsgame.ErrGameNotFound
	}
	return g, nil
}

// OpenGames lists challenges still accepting a second player.
func (s *Server) OpenGames() []*rpsgame.Game {
	return s.games.GamesInPhase(rpsgame.PhaseAcceptingChallenge)
}

// GamesInPhase lists live games in an arbitrary phase.
func (s *Server) GamesInPhase(phase rpsgame.Phase) []*rpsgame.Game {
	return s.games.GamesInPhase(phase)
}

// PlayerStats returns a player's per-asset record.
func (s *Server) PlayerStats(ctx context.Context, owner rpsgame.PlayerID) (*rpsgame.PlayerInfo, error) {
	return s.db.FetchPlayerInfo(ctx, owner, s.cfg.Asset)
}
