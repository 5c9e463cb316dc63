package rpsgame

import (
	"sync"

	"github.com/decred/slog"
)

// GameManager is the runtime registry of live games. Each game carries its
// own lock so transitions against the same game serialize while different
// games proceed in parallel.
type GameManager struct {
	mu    sync.RWMutex
	games map[GameID]*trackedGame

	Log slog.Logger
}

type trackedGame struct {
	mu   sync.Mutex
	game *Game
}

func NewGameManager(log slog.Logger) *GameManager {
	return &GameManager{
		games: make(map[GameID]*trackedGame),
		Log:   log,
	}
}

// Register adds a freshly created game. The seed is the uniqueness key; a
// second game with the same seed is rejected.
func (gm *GameManager) Register(game *Game) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	if _, ok := gm.games[game.ID]; ok {
		return ErrGameExists
	}
	gm.games[game.ID] = &trackedGame{game: game}
	return nil
}

// WithGame runs fn with exclusive ownership of the game. Mutations made by
// fn are visible to subsequent callers; a lost race simply observes the
// post-transition state and fails its own guard.
func (gm *GameManager) WithGame(id GameID, fn func(*Game) error) error {
	gm.mu.RLock()
	tg := gm.games[id]
	gm.mu.RUnlock()
	if tg == nil {
		return ErrGameNotFound
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return fn(tg.game)
}

// Snapshot returns a copy of the game record, or nil if unknown.
func (gm *GameManager) Snapshot(id GameID) *Game {
	var out *Game
	if err := gm.WithGame(id, func(g *Game) error {
		cp := *g
		out = &cp
		return nil
	}); err != nil {
		return nil
	}
	return out
}

// Remove drops a cleaned game from the registry.
func (gm *GameManager) Remove(id GameID) {
	gm.mu.Lock()
	delete(gm.games, id)
	gm.mu.Unlock()
}

// GamesInPhase returns copies of every registered game currently in the
// given phase. Used by the pool bot to discover joinable challenges.
func (gm *GameManager) GamesInPhase(phase Phase) []*Game {
	gm.mu.RLock()
	tracked := make([]*trackedGame, 0, len(gm.games))
	for _, tg := range gm.games {
		tracked = append(tracked, tg)
	}
	gm.mu.RUnlock()

	var out []*Game
	for _, tg := range tracked {
		tg.mu.Lock()
		if tg.game.State.Phase == phase {
			cp := *tg.game
			out = append(out, &cp)
		}
		tg.mu.Unlock()
	}
	return out
}
