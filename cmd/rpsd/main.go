package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/solanaGames/rps-go/ledger"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server"
	"github.com/solanaGames/rps-go/server/serverdb"
	"github.com/vctt94/bisonbotkit/logging"
)

func realMain() error {
	configPath := flag.String("config", "rpsd.toml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	lb, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(cfg.DataDir, "logs", "rpsd.log"),
		DebugLevel:     cfg.DebugLevel,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := lb.Logger("RPSD")

	var operator rpsgame.PlayerID
	if err := operator.FromString(cfg.Operator); err != nil {
		return fmt.Errorf("bad operator identity: %w", err)
	}
	var cleaner *rpsgame.PlayerID
	if cfg.Cleaner != "" {
		var id rpsgame.PlayerID
		if err := id.FromString(cfg.Cleaner); err != nil {
			return fmt.Errorf("bad cleaner identity: %w", err)
		}
		cleaner = &id
	}

	sdb, boltDB, err := serverdb.OpenBoltDB(filepath.Join(cfg.DataDir, "rps.db"))
	if err != nil {
		return err
	}
	defer sdb.Close()

	led, err := ledger.NewBoltLedger(boltDB)
	if err != nil {
		return err
	}

	hub := server.NewEventHub(lb.Logger("HUB"))
	sink := server.MultiSink{server.LogSink{Log: lb.Logger("EVNT")}, hub}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, server.Config{
		Asset:    cfg.Asset,
		MinWager: cfg.MinWager,
		Operator: operator,
		Cleaner:  cleaner,
		HTTPAddr: cfg.ListenAddr,
		Log:      lb.Logger("SRVR"),
		DB:       sdb,
		Ledger:   led,
		Sink:     sink,
	})
	if err != nil {
		return err
	}

	if cfg.Pool.Enabled {
		var bot rpsgame.PlayerID
		if err := bot.FromString(cfg.Pool.BotAuthority); err != nil {
			return fmt.Errorf("bad pool bot authority: %w", err)
		}
		_, err := srv.CreatePool(ctx, operator, cfg.Pool.Seed, bot)
		switch {
		case err == nil:
			log.Infof("pool created with seed %d", cfg.Pool.Seed)
		case errors.Is(err, serverdb.ErrDuplicateEntry):
			// Already provisioned on a previous run.
		default:
			return fmt.Errorf("create pool: %w", err)
		}
	}

	return srv.Run(ctx)
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
