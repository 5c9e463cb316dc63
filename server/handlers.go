package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/solanaGames/rps-go/ledger"
	"github.com/solanaGames/rps-go/pool"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server/serverdb"
)

// Router builds the HTTP API. Handlers authenticate and translate;
// everything substantive happens in the Server methods.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/players", s.handleRegisterPlayer).Methods(http.MethodPost)
	r.HandleFunc("/players/{id}", s.handleGetPlayer).Methods(http.MethodGet)

	r.HandleFunc("/games", s.handleCreateGame).Methods(http.MethodPost)
	r.HandleFunc("/games", s.handleListGames).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}/join", s.handleJoinGame).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/reveal", s.handleReveal).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/expire", s.handleExpireGame).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/settle", s.handleSettle).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/clean", s.handleCleanGame).Methods(http.MethodPost)

	r.HandleFunc("/pool", s.handleCreatePool).Methods(http.MethodPost)
	r.HandleFunc("/pool", s.handlePoolStatus).Methods(http.MethodGet)
	r.HandleFunc("/pool/deposit", s.handlePoolDeposit).Methods(http.MethodPost)
	r.HandleFunc("/pool/withdraw", s.handlePoolWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/pool/play", s.handlePoolPlay).Methods(http.MethodPost)
	r.HandleFunc("/pool/expire", s.handlePoolExpire).Methods(http.MethodPost)

	if hub, ok := s.sink.(*EventHub); ok {
		r.Handle("/ws/events", hub)
	} else if multi, ok := s.sink.(MultiSink); ok {
		for _, sub := range multi {
			if hub, ok := sub.(*EventHub); ok {
				r.Handle("/ws/events", hub)
				break
			}
		}
	}
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 so operational failures never masquerade as client mistakes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rpsgame.ErrUnknownChoice),
		errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, pool.ErrZeroAmount):
		return http.StatusBadRequest

	case errors.Is(err, ErrBadSignature),
		errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrNotCleaner),
		errors.Is(err, rpsgame.ErrWrongPlayer),
		errors.Is(err, pool.ErrNotBot):
		return http.StatusForbidden

	case errors.Is(err, rpsgame.ErrGameNotFound),
		errors.Is(err, serverdb.ErrGameNotFound),
		errors.Is(err, serverdb.ErrPlayerNotFound),
		errors.Is(err, serverdb.ErrPlayerInfoNotFound),
		errors.Is(err, serverdb.ErrPoolNotFound),
		errors.Is(err, ErrPoolDisabled):
		return http.StatusNotFound

	case errors.Is(err, rpsgame.ErrGameExists),
		errors.Is(err, rpsgame.ErrInvalidTransition),
		errors.Is(err, rpsgame.ErrNotExpired),
		errors.Is(err, rpsgame.ErrChallengeExpired),
		errors.Is(err, ErrNotSettled),
		errors.Is(err, serverdb.ErrDuplicateEntry),
		errors.Is(err, pool.ErrPoolInsolvent),
		errors.Is(err, pool.ErrNoShares),
		errors.Is(err, pool.ErrNoLiquidity):
		return http.StatusConflict

	case errors.Is(err, rpsgame.ErrBadCommitment),
		errors.Is(err, rpsgame.ErrBadEntrySecret),
		errors.Is(err, rpsgame.ErrBetTooLarge),
		errors.Is(err, ErrWagerTooSmall),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
		return false
	}
	return true
}

func parsePlayerID(s string) (rpsgame.PlayerID, error) {
	var id rpsgame.PlayerID
	err := id.FromString(s)
	return id, err
}

func gameIDVar(w http.ResponseWriter, r *http.Request) (rpsgame.GameID, bool) {
	var id rpsgame.GameID
	if err := id.FromString(mux.Vars(r)["id"]); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed game id"})
		return id, false
	}
	return id, true
}

// signedRequest carries the fields every authenticated call shares.
// Sig is the hex schnorr signature over the operation's canonical
// message.
type signedRequest struct {
	Player string `json:"player"`
	Sig    string `json:"sig"`
}

// authenticate resolves the caller and checks their signature over msg.
func (s *Server) authenticate(r *http.Request, req signedRequest, msg func(rpsgame.PlayerID) []byte) (rpsgame.PlayerID, error) {
	caller, err := parsePlayerID(req.Player)
	if err != nil {
		return caller, err
	}
	sig, err := hex.DecodeString(req.Sig)
	if err != nil {
		return caller, errors.Join(ErrBadSignature, err)
	}
	return caller, s.verifySignature(r.Context(), caller, msg(caller), sig)
}

type registerPlayerRequest struct {
	PubKey string `json:"pubkey"`
}

type registerPlayerResponse struct {
	PlayerID rpsgame.PlayerID `json:"player_id"`
}

func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req registerPlayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	raw, err := hex.DecodeString(req.PubKey)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed pubkey"})
		return
	}
	id, err := s.RegisterPlayer(r.Context(), raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, registerPlayerResponse{PlayerID: id})
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := parsePlayerID(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed player id"})
		return
	}
	info, err := s.PlayerStats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type createGameRequest struct {
	signedRequest
	Seed        uint64              `json:"seed"`
	Commitment  rpsgame.Commitment  `json:"commitment"`
	WagerAmount uint64              `json:"wager_amount"`
	EntryProof  *rpsgame.EntryProof `json:"entry_proof,omitempty"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(id rpsgame.PlayerID) []byte {
		return CreateGameMessage(id, req.Seed, req.Commitment, req.WagerAmount, req.EntryProof)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.CreateGame(r.Context(), caller, req.Seed, req.Commitment,
		req.WagerAmount, req.EntryProof)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.OpenGames()
	if ps := r.URL.Query().Get("phase"); ps != "" {
		var phase rpsgame.Phase
		if err := phase.UnmarshalJSON([]byte(`"` + ps + `"`)); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid phase"})
			return
		}
		games = s.GamesInPhase(phase)
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	game, err := s.Game(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

type joinGameRequest struct {
	signedRequest
	Choice rpsgame.Choice `json:"choice"`
	Secret *uint64        `json:"secret,omitempty"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	var req joinGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return JoinGameMessage(p, id, req.Choice, req.Secret)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.JoinGameAs(r.Context(), caller, id, req.Choice, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

type revealRequest struct {
	signedRequest
	Salt   uint64         `json:"salt"`
	Choice rpsgame.Choice `json:"choice"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	var req revealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return RevealMessage(p, id, req.Salt, req.Choice)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.Reveal(r.Context(), caller, id, req.Salt, req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleExpireGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	var req signedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req, func(p rpsgame.PlayerID) []byte {
		return ExpireGameMessage(p, id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.ExpireGame(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// handleSettle needs no signature: settlement pays out exactly what the
// decided state dictates no matter who triggers it.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	game, err := s.Settle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleCleanGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(w, r)
	if !ok {
		return
	}
	var req signedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req, func(p rpsgame.PlayerID) []byte {
		return CleanGameMessage(p, id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := s.CleanGame(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type createPoolRequest struct {
	signedRequest
	Seed         uint64 `json:"seed"`
	BotAuthority string `json:"bot_authority"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bot, err := parsePlayerID(req.BotAuthority)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed bot authority"})
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return CreatePoolMessage(p, req.Seed, bot)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.CreatePool(r.Context(), caller, req.Seed, bot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Pool()
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := eng.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type poolDepositRequest struct {
	signedRequest
	Amount uint64 `json:"amount"`
}

type poolDepositResponse struct {
	SharesMinted uint64 `json:"shares_minted"`
}

func (s *Server) handlePoolDeposit(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Pool()
	if err != nil {
		writeError(w, err)
		return
	}
	var req poolDepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return PoolDepositMessage(p, req.Amount)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := eng.Deposit(r.Context(), caller, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolDepositResponse{SharesMinted: shares})
}

type poolWithdrawRequest struct {
	signedRequest
	Shares uint64 `json:"shares"`
}

type poolWithdrawResponse struct {
	AmountPaid uint64 `json:"amount_paid"`
}

func (s *Server) handlePoolWithdraw(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Pool()
	if err != nil {
		writeError(w, err)
		return
	}
	var req poolWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return PoolWithdrawMessage(p, req.Shares)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	paid, err := eng.Withdraw(r.Context(), caller, req.Shares)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolWithdrawResponse{AmountPaid: paid})
}

type poolPlayRequest struct {
	signedRequest
	GameID string         `json:"game_id"`
	Choice rpsgame.Choice `json:"choice"`
	Secret *uint64        `json:"secret,omitempty"`
}

func (s *Server) handlePoolPlay(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Pool()
	if err != nil {
		writeError(w, err)
		return
	}
	var req poolPlayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var gameID rpsgame.GameID
	if err := gameID.FromString(req.GameID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed game id"})
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return PoolPlayMessage(p, gameID, req.Choice, req.Secret)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := eng.BotPlay(r.Context(), caller, gameID, req.Choice, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

type poolExpireRequest struct {
	signedRequest
	GameID string `json:"game_id"`
}

func (s *Server) handlePoolExpire(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Pool()
	if err != nil {
		writeError(w, err)
		return
	}
	var req poolExpireRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var gameID rpsgame.GameID
	if err := gameID.FromString(req.GameID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed game id"})
		return
	}
	caller, err := s.authenticate(r, req.signedRequest, func(p rpsgame.PlayerID) []byte {
		return PoolExpireMessage(p, gameID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := eng.BotExpire(r.Context(), caller, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}
