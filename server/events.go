package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/solanaGames/rps-go/rpsgame"
)

// GameStartEvent announces a freshly opened challenge so would-be
// challengers can find it.
type GameStartEvent struct {
	EventName    string         `json:"event_name"`
	EventVersion uint64         `json:"event_version"`
	GameID       rpsgame.GameID `json:"game_id"`
	WagerAmount  uint64         `json:"wager_amount"`
	FeeAmount    uint64         `json:"fee_amount"`
	Public       bool           `json:"public"`
}

// ReadableGameEvent is the terminal record of a finished game. Its field
// names and value spellings are a compatibility contract with downstream
// indexers; bump EventVersion before changing any of them.
type ReadableGameEvent struct {
	EventName    string          `json:"event_name"`
	EventVersion uint64          `json:"event_version"`
	Player1      string          `json:"player_1"`
	Choice1      *rpsgame.Choice `json:"choice_1"`
	Player2      string          `json:"player_2"`
	Choice2      *rpsgame.Choice `json:"choice_2"`
	Result       rpsgame.Winner  `json:"result"`
	WagerAmount  uint64          `json:"wager_amount"`
	FeeAmount    uint64          `json:"fee_amount"`
	Public       bool            `json:"public"`
}

const (
	gameStartEventName  = "game_start"
	gameResultEventName = "game_result"
	eventVersion        = 1
)

// newGameStartEvent builds the announcement for a game that just opened.
func newGameStartEvent(game *rpsgame.Game) *GameStartEvent {
	return &GameStartEvent{
		EventName:    gameStartEventName,
		EventVersion: eventVersion,
		GameID:       game.ID,
		WagerAmount:  game.Wager(),
		FeeAmount:    game.FeeAmount,
		Public:       game.State.Config.Public(),
	}
}

// newGameResultEvent builds the terminal record for a settled game. An
// unrevealed commitment stays hidden forever, hence the nullable choices.
func newGameResultEvent(game *rpsgame.Game) *ReadableGameEvent {
	return &ReadableGameEvent{
		EventName:    gameResultEventName,
		EventVersion: eventVersion,
		Player1:      game.State.Player1.ID.String(),
		Choice1:      game.State.Player1.ChoiceOrUnrevealed(),
		Player2:      game.State.Player2.ID.String(),
		Choice2:      game.State.Player2.ChoiceOrUnrevealed(),
		Result:       game.State.Result,
		WagerAmount:  game.Wager(),
		FeeAmount:    game.FeeAmount,
		Public:       game.State.Config.Public(),
	}
}

// EventSink receives protocol events. Sinks must not block; slow
// consumers get dropped, not waited on.
type EventSink interface {
	GameStart(ev *GameStartEvent)
	GameResult(ev *ReadableGameEvent)
}

// LogSink writes events to the server log.
type LogSink struct {
	Log slog.Logger
}

func (s LogSink) GameStart(ev *GameStartEvent) {
	s.Log.Infof("event game_start: game=%s wager=%d fee=%d public=%v",
		ev.GameID, ev.WagerAmount, ev.FeeAmount, ev.Public)
}

func (s LogSink) GameResult(ev *ReadableGameEvent) {
	s.Log.Infof("event game_result: p1=%s p2=%s result=%s wager=%d fee=%d",
		ev.Player1, ev.Player2, ev.Result, ev.WagerAmount, ev.FeeAmount)
}

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) GameStart(ev *GameStartEvent) {
	for _, s := range m {
		s.GameStart(ev)
	}
}

func (m MultiSink) GameResult(ev *ReadableGameEvent) {
	for _, s := range m {
		s.GameResult(ev)
	}
}

// EventHub broadcasts events to websocket subscribers. Writes that fail
// evict the connection.
type EventHub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	log      slog.Logger
	upgrader websocket.Upgrader
}

func NewEventHub(log slog.Logger) *EventHub {
	return &EventHub{
		conns: make(map[*websocket.Conn]struct{}),
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and keeps the connection subscribed
// until the peer goes away. Inbound messages are drained and ignored.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("ws upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.log.Debugf("event subscriber connected: %s", conn.RemoteAddr())

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *EventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *EventHub) broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("marshal event: %v", err)
		return
	}
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
		}
	}
}

func (h *EventHub) GameStart(ev *GameStartEvent)     { h.broadcast(ev) }
func (h *EventHub) GameResult(ev *ReadableGameEvent) { h.broadcast(ev) }
