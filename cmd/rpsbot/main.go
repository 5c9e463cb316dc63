// rpsbot plays open rock paper scissors challenges with pooled funds. It
// polls the server for joinable games, answers each with a uniformly
// random throw, and settles games it decided.
package main

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/vctt94/bisonbotkit/logging"
)

// randomChoice draws an unbiased throw. 255 is the only residue class
// that would skew the distribution, so it is rejected.
func randomChoice() (rpsgame.Choice, error) {
	for {
		var b [1]byte
		if _, err := crand.Read(b[:]); err != nil {
			return 0, err
		}
		if b[0] == 255 {
			continue
		}
		return rpsgame.Choice(b[0] % 3), nil
	}
}

type bot struct {
	cfg       *config
	api       *apiClient
	log       slog.Logger
	authority rpsgame.PlayerID
	played    map[rpsgame.GameID]bool
}

func (b *bot) pollOnce(ctx context.Context) {
	games, err := b.api.openGames(ctx)
	if err != nil {
		b.log.Warnf("list games: %v", err)
		return
	}
	for _, g := range games {
		if b.played[g.ID] {
			continue
		}
		if !g.State.Config.Public() {
			// Private games need the entry secret; not ours to join.
			continue
		}
		if g.Wager() > b.cfg.MaxWager {
			b.log.Debugf("skipping game %s: wager %d over limit", g.ID, g.Wager())
			continue
		}
		if p1 := g.Player1(); p1 != nil && *p1 == b.api.id {
			continue
		}

		choice, err := randomChoice()
		if err != nil {
			b.log.Errorf("rng: %v", err)
			return
		}
		if _, err := b.api.poolPlay(ctx, g.ID, choice); err != nil {
			b.log.Warnf("join game %s: %v", g.ID, err)
			continue
		}
		b.played[g.ID] = true
		b.log.Infof("joined game %s with %s (wager %d)", g.ID, choice, g.Wager())
	}
}

// expireStuck forfeits games where the pool joined but the creator never
// revealed. The pool authority holds no key, so these timeouts can only
// be claimed through the bot endpoint; without this step an opponent who
// walks away would lock pool funds forever.
func (b *bot) expireStuck(ctx context.Context) {
	var waiting []*rpsgame.Game
	if err := b.api.get(ctx, "/games?phase=accepting_reveal", &waiting); err != nil {
		b.log.Warnf("list unrevealed games: %v", err)
		return
	}
	for _, g := range waiting {
		if p2 := g.Player2(); p2 == nil || *p2 != b.authority {
			continue
		}
		if _, err := b.api.poolExpire(ctx, g.ID); err != nil {
			// Usually just not expired yet; try again next tick.
			b.log.Debugf("expire game %s: %v", g.ID, err)
			continue
		}
		b.log.Infof("expired game %s: creator never revealed", g.ID)
	}
}

// settleDecided pays out games that reached their decided state.
func (b *bot) settleDecided(ctx context.Context) {
	var decided []*rpsgame.Game
	if err := b.api.get(ctx, "/games?phase=accepting_settle", &decided); err != nil {
		b.log.Warnf("list decided games: %v", err)
		return
	}
	for _, g := range decided {
		if err := b.api.settle(ctx, g.ID); err != nil {
			b.log.Warnf("settle game %s: %v", g.ID, err)
			continue
		}
		b.log.Infof("settled game %s: %s", g.ID, g.State.Result)
	}
}

func realMain() error {
	configPath := flag.String("config", "rpsbot.toml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	lb, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(cfg.DataDir, "logs", "rpsbot.log"),
		DebugLevel:     cfg.DebugLevel,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := lb.Logger("BOT")

	rawKey, err := hex.DecodeString(cfg.PrivKey)
	if err != nil || len(rawKey) != 32 {
		return fmt.Errorf("priv_key must be 64 hex chars")
	}
	priv := secp256k1.PrivKeyFromBytes(rawKey)

	api := newAPIClient(cfg.ServerURL, priv)
	log.Infof("bot identity: %s", api.id)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.register(ctx); err != nil {
		return fmt.Errorf("register with server: %w", err)
	}

	status, err := api.poolStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetch pool status: %w", err)
	}

	b := &bot{
		cfg:       cfg,
		api:       api,
		log:       log,
		authority: status.Authority,
		played:    make(map[rpsgame.GameID]bool),
	}

	ticker := time.NewTicker(time.Duration(cfg.PollInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("shutting down")
			return nil
		case <-ticker.C:
			b.pollOnce(ctx)
			b.expireStuck(ctx)
			b.settleDecided(ctx)
		}
	}
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
