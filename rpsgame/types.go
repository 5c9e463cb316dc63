package rpsgame

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/companyzero/bisonrelay/zkidentity"
	"github.com/decred/dcrd/crypto/blake256"
)

// PlayerID and GameID are 32-byte identities. Players derive theirs from
// their registered public key; games derive theirs from the creation seed.
type PlayerID = zkidentity.ShortID
type GameID = zkidentity.ShortID

const (
	// TimeoutSlots is the fixed lifetime of a waiting state. Slots tick
	// twice a second, so 600 slots is roughly five minutes.
	TimeoutSlots = 2 * 60 * 5

	// Player1FeeBps is the origination fee charged to player 1 at game
	// creation, in basis points of the wager.
	Player1FeeBps = 350
)

// FeeFor computes the origination fee on a wager at Player1FeeBps. Wagers
// large enough to overflow the fee product are rejected outright.
func FeeFor(wager uint64) (uint64, error) {
	if wager > math.MaxUint64/Player1FeeBps {
		return 0, ErrBetTooLarge
	}
	return wager * Player1FeeBps / 10_000, nil
}

// GameIDFromSeed derives the canonical game identity for a creation seed.
func GameIDFromSeed(seed uint64) GameID {
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], seed)
	h := blake256.New()
	h.Write([]byte("rps/game/v1"))
	h.Write(sb[:])
	var id GameID
	copy(id[:], h.Sum(nil))
	return id
}

// Choice is one of the three throws.
type Choice uint8

const (
	Rock Choice = iota
	Paper
	Scissors
)

func (c Choice) String() string {
	switch c {
	case Rock:
		return "Rock"
	case Paper:
		return "Paper"
	case Scissors:
		return "Scissors"
	}
	return fmt.Sprintf("Choice(%d)", uint8(c))
}

// Beats reports whether c wins against other under standard RPS rules.
func (c Choice) Beats(other Choice) bool {
	switch {
	case c == Rock && other == Scissors:
		return true
	case c == Paper && other == Rock:
		return true
	case c == Scissors && other == Paper:
		return true
	}
	return false
}

// ParseChoice accepts the canonical capitalized names.
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "Rock":
		return Rock, nil
	case "Paper":
		return Paper, nil
	case "Scissors":
		return Scissors, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChoice, s)
}

func (c Choice) MarshalJSON() ([]byte, error) {
	switch c {
	case Rock, Paper, Scissors:
		return json.Marshal(c.String())
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownChoice, uint8(c))
}

func (c *Choice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseChoice(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Winner is the outcome of a finished game.
type Winner uint8

const (
	WinnerP1 Winner = iota
	WinnerP2
	WinnerTie
)

func (w Winner) String() string {
	switch w {
	case WinnerP1:
		return "P1"
	case WinnerP2:
		return "P2"
	case WinnerTie:
		return "TIE"
	}
	return fmt.Sprintf("Winner(%d)", uint8(w))
}

func (w Winner) MarshalJSON() ([]byte, error) {
	switch w {
	case WinnerP1, WinnerP2, WinnerTie:
		return json.Marshal(w.String())
	}
	return nil, fmt.Errorf("invalid winner value %d", uint8(w))
}

func (w *Winner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "P1":
		*w = WinnerP1
	case "P2":
		*w = WinnerP2
	case "TIE":
		*w = WinnerTie
	default:
		return fmt.Errorf("invalid winner value %q", s)
	}
	return nil
}

// winnerOf computes the round result from both revealed choices.
func winnerOf(p1, p2 Choice) Winner {
	switch {
	case p1.Beats(p2):
		return WinnerP1
	case p2.Beats(p1):
		return WinnerP2
	}
	return WinnerTie
}

// PlayerState is a player's slot in a game. A player is either still
// committed (choice hidden behind Commitment) or revealed. Player 1 starts
// committed at creation; player 2 is admitted directly revealed at join.
type PlayerState struct {
	ID         PlayerID   `json:"id"`
	Revealed   bool       `json:"revealed"`
	Commitment Commitment `json:"commitment,omitempty"`
	Choice     Choice     `json:"choice,omitempty"`
}

// CommittedPlayer returns the state of a player whose choice is still
// hidden behind commitment.
func CommittedPlayer(id PlayerID, commitment Commitment) PlayerState {
	return PlayerState{ID: id, Commitment: commitment}
}

// RevealedPlayer returns the state of a player whose choice is public.
func RevealedPlayer(id PlayerID, choice Choice) PlayerState {
	return PlayerState{ID: id, Revealed: true, Choice: choice}
}

// ChoiceOrUnrevealed returns the player's choice, or nil if it was never
// revealed (an expired commitment stays hidden forever).
func (ps PlayerState) ChoiceOrUnrevealed() *Choice {
	if !ps.Revealed {
		return nil
	}
	c := ps.Choice
	return &c
}

// GameConfig is fixed at creation and immutable afterwards.
type GameConfig struct {
	WagerAmount uint64      `json:"wager_amount"`
	EntryProof  *EntryProof `json:"entry_proof,omitempty"`
}

// Public reports whether anyone may join, or only holders of the entry
// secret.
func (c GameConfig) Public() bool {
	return c.EntryProof == nil
}

// Phase tags the variant held by a GameState.
type Phase uint8

const (
	PhaseInitialized Phase = iota
	PhaseAcceptingChallenge
	PhaseAcceptingReveal
	PhaseAcceptingSettle
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseAcceptingChallenge:
		return "accepting_challenge"
	case PhaseAcceptingReveal:
		return "accepting_reveal"
	case PhaseAcceptingSettle:
		return "accepting_settle"
	case PhaseSettled:
		return "settled"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, v := range []Phase{PhaseInitialized, PhaseAcceptingChallenge,
		PhaseAcceptingReveal, PhaseAcceptingSettle, PhaseSettled} {
		if v.String() == s {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("invalid phase %q", s)
}

// GameState is the invariant-bearing heart of a game. Which fields are
// meaningful depends on Phase:
//
//	Initialized         nothing
//	AcceptingChallenge  Config, Player1, ExpirySlot
//	AcceptingReveal     Config, Player1, Player2, ExpirySlot
//	AcceptingSettle     Config, Player1, Player2, Result
//	Settled             Config, Player1, Player2, Result
//
// States are values; Apply never mutates its input.
type GameState struct {
	Phase      Phase       `json:"phase"`
	Config     GameConfig  `json:"config"`
	Player1    PlayerState `json:"player_1"`
	Player2    PlayerState `json:"player_2"`
	Result     Winner      `json:"result"`
	ExpirySlot uint64      `json:"expiry_slot"`
}

// Initialized is the transient starting state of every game.
func Initialized() GameState {
	return GameState{Phase: PhaseInitialized}
}

// SelfPlay reports whether this game expired unmatched: the expire
// transition marks player 2 with player 1's identity so settlement knows to
// refund a single wager instead of paying out two.
func (s GameState) SelfPlay() bool {
	return s.Phase >= PhaseAcceptingSettle && s.Player1.ID == s.Player2.ID
}

// Action is one of the five submitted operations. Apply matches actions
// against the current phase; any pairing outside the transition table is
// rejected.
type Action interface {
	actionName() string
}

// CreateGame escrows player 1's wager and opens the challenge.
type CreateGame struct {
	Player1    PlayerID
	Commitment Commitment
	Config     GameConfig
}

// JoinGame admits player 2, revealed immediately. Secret gates entry into
// private games.
type JoinGame struct {
	Player2 PlayerID
	Choice  Choice
	Secret  *uint64
}

// Reveal discloses player 1's salt and choice against the stored
// commitment.
type Reveal struct {
	Player1 PlayerID
	Salt    uint64
	Choice  Choice
}

// ExpireGame forfeits a timed-out waiting state in favor of the eligible
// player.
type ExpireGame struct {
	Caller PlayerID
}

// Settle moves a decided game into its terminal state.
type Settle struct{}

func (CreateGame) actionName() string { return "create_game" }
func (JoinGame) actionName() string   { return "join_game" }
func (Reveal) actionName() string     { return "reveal" }
func (ExpireGame) actionName() string { return "expire_game" }
func (Settle) actionName() string     { return "settle" }

// Game is a wager record owned exclusively by the protocol and mutated
// only through Apply. FeeAmount is derived once at creation.
type Game struct {
	Seed      uint64    `json:"seed"`
	ID        GameID    `json:"id"`
	Asset     string    `json:"asset"`
	FeeAmount uint64    `json:"fee_amount"`
	State     GameState `json:"state"`
}

// Wager is the per-player stake fixed at creation.
func (g *Game) Wager() uint64 {
	return g.State.Config.WagerAmount
}

// Player1 returns player 1's identity once one exists.
func (g *Game) Player1() *PlayerID {
	switch g.State.Phase {
	case PhaseAcceptingChallenge, PhaseAcceptingReveal, PhaseAcceptingSettle, PhaseSettled:
		id := g.State.Player1.ID
		return &id
	}
	return nil
}

// Player2 returns player 2's identity once one exists.
func (g *Game) Player2() *PlayerID {
	switch g.State.Phase {
	case PhaseAcceptingReveal, PhaseAcceptingSettle, PhaseSettled:
		id := g.State.Player2.ID
		return &id
	}
	return nil
}
