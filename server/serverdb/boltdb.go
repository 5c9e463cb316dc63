package serverdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/companyzero/bisonrelay/zkidentity"
	"github.com/solanaGames/rps-go/rpsgame"
	bolt "go.etcd.io/bbolt"
)

var (
	gamesBucket      = []byte("games")
	playerInfoBucket = []byte("playerinfo")
	playersBucket    = []byte("players")
	poolBucket       = []byte("pool")
	poolConfigKey    = []byte("config")
)

// BoltDB is the bbolt-backed ServerDB. Records are stored as JSON under
// per-kind buckets.
type BoltDB struct {
	db     *bolt.DB
	ownsDB bool
}

var _ ServerDB = (*BoltDB)(nil)

// NewBoltDB wraps an already-open bbolt database shared with other
// subsystems.
func NewBoltDB(db *bolt.DB) (*BoltDB, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{gamesBucket, playerInfoBucket, playersBucket, poolBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create serverdb buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// OpenBoltDB opens (creating if needed) a database file and wraps it.
func OpenBoltDB(path string) (*BoltDB, *bolt.DB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	sdb, err := NewBoltDB(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	sdb.ownsDB = true
	return sdb, db, nil
}

func playerInfoKey(owner rpsgame.PlayerID, asset string) []byte {
	return []byte(owner.String() + "|" + asset)
}

func putJSON(tx *bolt.Tx, bucket, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put(key, raw)
}

func (d *BoltDB) SaveGame(_ context.Context, game *rpsgame.Game) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, gamesBucket, game.ID[:], game)
	})
}

func (d *BoltDB) FetchGame(_ context.Context, id rpsgame.GameID) (*rpsgame.Game, error) {
	var game rpsgame.Game
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(gamesBucket).Get(id[:])
		if raw == nil {
			return ErrGameNotFound
		}
		return json.Unmarshal(raw, &game)
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (d *BoltDB) DeleteGame(_ context.Context, id rpsgame.GameID) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(gamesBucket).Delete(id[:])
	})
}

func (d *BoltDB) ListGames(_ context.Context) ([]*rpsgame.Game, error) {
	var games []*rpsgame.Game
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(gamesBucket).ForEach(func(_, raw []byte) error {
			var game rpsgame.Game
			if err := json.Unmarshal(raw, &game); err != nil {
				return err
			}
			games = append(games, &game)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (d *BoltDB) SavePlayerInfo(_ context.Context, info *rpsgame.PlayerInfo) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, playerInfoBucket, playerInfoKey(info.Owner, info.Asset), info)
	})
}

func (d *BoltDB) FetchPlayerInfo(_ context.Context, owner rpsgame.PlayerID, asset string) (*rpsgame.PlayerInfo, error) {
	var info rpsgame.PlayerInfo
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(playerInfoBucket).Get(playerInfoKey(owner, asset))
		if raw == nil {
			return ErrPlayerInfoNotFound
		}
		return json.Unmarshal(raw, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *BoltDB) SavePlayer(_ context.Context, rec *PlayerRecord) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, playersBucket, rec.ID[:], rec)
	})
}

func (d *BoltDB) FetchPlayer(_ context.Context, id zkidentity.ShortID) (*PlayerRecord, error) {
	var rec PlayerRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(playersBucket).Get(id[:])
		if raw == nil {
			return ErrPlayerNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *BoltDB) SavePool(_ context.Context, rec *PoolRecord) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, poolBucket, poolConfigKey, rec)
	})
}

func (d *BoltDB) FetchPool(_ context.Context) (*PoolRecord, error) {
	var rec PoolRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(poolBucket).Get(poolConfigKey)
		if raw == nil {
			return ErrPoolNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *BoltDB) Close() error {
	if d.ownsDB {
		return d.db.Close()
	}
	return nil
}
