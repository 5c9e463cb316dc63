package serverdb

import (
	"context"
	"errors"

	"github.com/companyzero/bisonrelay/zkidentity"
	"github.com/solanaGames/rps-go/rpsgame"
)

var (
	ErrGameNotFound       = errors.New("game record not found")
	ErrPlayerNotFound     = errors.New("player not registered")
	ErrPlayerInfoNotFound = errors.New("player info not found")
	ErrPoolNotFound       = errors.New("pool not registered")
	ErrDuplicateEntry     = errors.New("record already stored")
)

// PlayerRecord binds a registered identity to its secp256k1 public key.
// The ID is the blake256 hash of the compressed key, so the binding is
// self-certifying.
type PlayerRecord struct {
	ID     zkidentity.ShortID `json:"id"`
	PubKey []byte             `json:"pubkey"`
}

// PoolRecord stores the pooled-liquidity configuration: which account
// escrows the capital, which identity may play for it, and which asset its
// shares are issued in.
type PoolRecord struct {
	Seed         uint64             `json:"seed"`
	Authority    zkidentity.ShortID `json:"authority"`
	BotAuthority zkidentity.ShortID `json:"bot_authority"`
	Asset        string             `json:"asset"`
	ShareAsset   string             `json:"share_asset"`
}

// ServerDB persists everything the server must survive a restart with:
// open game records, player ledgers, registered keys, and the pool
// configuration.
type ServerDB interface {
	SaveGame(ctx context.Context, game *rpsgame.Game) error
	FetchGame(ctx context.Context, id rpsgame.GameID) (*rpsgame.Game, error)
	DeleteGame(ctx context.Context, id rpsgame.GameID) error
	ListGames(ctx context.Context) ([]*rpsgame.Game, error)

	SavePlayerInfo(ctx context.Context, info *rpsgame.PlayerInfo) error
	FetchPlayerInfo(ctx context.Context, owner rpsgame.PlayerID, asset string) (*rpsgame.PlayerInfo, error)

	SavePlayer(ctx context.Context, rec *PlayerRecord) error
	FetchPlayer(ctx context.Context, id zkidentity.ShortID) (*PlayerRecord, error)

	SavePool(ctx context.Context, rec *PoolRecord) error
	FetchPool(ctx context.Context) (*PoolRecord, error)

	Close() error
}
