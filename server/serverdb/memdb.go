package serverdb

import (
	"context"
	"sync"

	"github.com/companyzero/bisonrelay/zkidentity"
	"github.com/solanaGames/rps-go/rpsgame"
)

// MemDB is the in-memory ServerDB used by tests.
type MemDB struct {
	mu      sync.RWMutex
	games   map[rpsgame.GameID]*rpsgame.Game
	infos   map[string]*rpsgame.PlayerInfo
	players map[zkidentity.ShortID]*PlayerRecord
	pool    *PoolRecord
}

var _ ServerDB = (*MemDB)(nil)

func NewMemDB() *MemDB {
	return &MemDB{
		games:   make(map[rpsgame.GameID]*rpsgame.Game),
		infos:   make(map[string]*rpsgame.PlayerInfo),
		players: make(map[zkidentity.ShortID]*PlayerRecord),
	}
}

func (d *MemDB) SaveGame(_ context.Context, game *rpsgame.Game) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *game
	d.games[game.ID] = &cp
	return nil
}

func (d *MemDB) FetchGame(_ context.Context, id rpsgame.GameID) (*rpsgame.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	game, ok := d.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	cp := *game
	return &cp, nil
}

func (d *MemDB) DeleteGame(_ context.Context, id rpsgame.GameID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.games, id)
	return nil
}

func (d *MemDB) ListGames(_ context.Context) ([]*rpsgame.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*rpsgame.Game, 0, len(d.games))
	for _, game := range d.games {
		cp := *game
		out = append(out, &cp)
	}
	return out, nil
}

func (d *MemDB) SavePlayerInfo(_ context.Context, info *rpsgame.PlayerInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *info
	d.infos[info.Owner.String()+"|"+info.Asset] = &cp
	return nil
}

func (d *MemDB) FetchPlayerInfo(_ context.Context, owner rpsgame.PlayerID, asset string) (*rpsgame.PlayerInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.infos[owner.String()+"|"+asset]
	if !ok {
		return nil, ErrPlayerInfoNotFound
	}
	cp := *info
	return &cp, nil
}

func (d *MemDB) SavePlayer(_ context.Context, rec *PlayerRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *rec
	d.players[rec.ID] = &cp
	return nil
}

func (d *MemDB) FetchPlayer(_ context.Context, id zkidentity.ShortID) (*PlayerRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *rec
	return &cp, nil
}

func (d *MemDB) SavePool(_ context.Context, rec *PoolRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *rec
	d.pool = &cp
	return nil
}

func (d *MemDB) FetchPool(_ context.Context) (*PoolRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pool == nil {
		return nil, ErrPoolNotFound
	}
	cp := *d.pool
	return &cp, nil
}

func (d *MemDB) Close() error { return nil }
