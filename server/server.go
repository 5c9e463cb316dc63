// Package server hosts the rock paper scissors wagering protocol: it
// authenticates requests, drives game state transitions, moves funds
// through the escrow ledger, and exposes the whole thing over HTTP.
package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/slog"
	"github.com/solanaGames/rps-go/ledger"
	"github.com/solanaGames/rps-go/pool"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server/serverdb"
)

// Config carries everything a Server needs. DB, Ledger and Log are
// required; the rest have usable defaults.
type Config struct {
	// Asset denominates all wagers and escrow balances.
	Asset string

	// MinWager rejects dust games before they reach the state machine.
	MinWager uint64

	// Operator may clean settled games and create the liquidity pool.
	Operator rpsgame.PlayerID

	// Cleaner, when set, is an additional identity allowed to clean.
	Cleaner *rpsgame.PlayerID

	// FeeAccount collects origination fees at settlement.
	FeeAccount ledger.Account

	HTTPAddr string

	Log    slog.Logger
	DB     serverdb.ServerDB
	Ledger ledger.Ledger
	Clock  Clock
	Sink   EventSink
}

// Server owns the runtime game registry and the pool engine. All state
// transitions funnel through its methods; handlers only authenticate and
// translate.
type Server struct {
	cfg    Config
	log    slog.Logger
	db     serverdb.ServerDB
	ledger ledger.Ledger
	clock  Clock
	sink   EventSink
	games  *rpsgame.GameManager

	poolMu sync.Mutex
	pool   *pool.Engine
}

// NewServer wires the collaborators and restores persisted state: every
// stored game re-enters the runtime registry, and the pool engine comes
// up if a pool record exists.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.DB == nil || cfg.Ledger == nil || cfg.Log == nil {
		return nil, fmt.Errorf("server config missing db, ledger or log")
	}
	if cfg.Asset == "" {
		cfg.Asset = "dcr"
	}
	if cfg.FeeAccount == "" {
		cfg.FeeAccount = ledger.Account("protocol/fees")
	}
	if cfg.Clock == nil {
		cfg.Clock = SlotClock{}
	}
	if cfg.Sink == nil {
		cfg.Sink = LogSink{Log: cfg.Log}
	}

	s := &Server{
		cfg:    cfg,
		log:    cfg.Log,
		db:     cfg.DB,
		ledger: cfg.Ledger,
		clock:  cfg.Clock,
		sink:   cfg.Sink,
		games:  rpsgame.NewGameManager(cfg.Log),
	}

	stored, err := s.db.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore games: %w", err)
	}
	for _, game := range stored {
		if err := s.games.Register(game); err != nil {
			return nil, fmt.Errorf("restore game %s: %w", game.ID, err)
		}
	}
	if len(stored) > 0 {
		s.log.Infof("restored %d games", len(stored))
	}

	switch rec, err := s.db.FetchPool(ctx); {
	case err == nil:
		s.pool = pool.NewEngine(rec, s.db, s.ledger, s, s.log)
		s.log.Infof("pool online: authority=%s bot=%s", rec.Authority, rec.BotAuthority)
	case errors.Is(err, serverdb.ErrPoolNotFound):
		// No pool yet; CreatePool can bring one up later.
	default:
		return nil, fmt.Errorf("restore pool: %w", err)
	}

	return s, nil
}

// PoolAuthorityFromSeed derives the protocol-owned identity that holds a
// pool's funds. It lives in the same namespace as player identities but no
// key hashes to it.
func PoolAuthorityFromSeed(seed uint64) rpsgame.PlayerID {
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], seed)
	h := blake256.New()
	h.Write([]byte("rps/pool/v1"))
	h.Write(sb[:])
	var id rpsgame.PlayerID
	copy(id[:], h.Sum(nil))
	return id
}

// CreatePool brings up the liquidity pool. Operator only; a server hosts
// at most one pool.
func (s *Server) CreatePool(ctx context.Context, caller rpsgame.PlayerID, seed uint64,
	botAuthority rpsgame.PlayerID) (*serverdb.PoolRecord, error) {

	if caller != s.cfg.Operator {
		return nil, ErrNotCleaner
	}

	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if s.pool != nil {
		return nil, serverdb.ErrDuplicateEntry
	}

	rec, err := pool.CreatePool(ctx, s.db, seed, PoolAuthorityFromSeed(seed), botAuthority, s.cfg.Asset)
	if err != nil {
		return nil, err
	}
	s.pool = pool.NewEngine(rec, s.db, s.ledger, s, s.log)
	s.log.Infof("pool created: seed=%d authority=%s bot=%s", seed, rec.Authority, rec.BotAuthority)
	return rec, nil
}

// Pool returns the pool engine, or an error when none is configured.
func (s *Server) Pool() (*pool.Engine, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if s.pool == nil {
		return nil, ErrPoolDisabled
	}
	return s.pool, nil
}

// Run serves the HTTP API until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
