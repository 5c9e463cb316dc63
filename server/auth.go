package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server/serverdb"
)

// PlayerIDForPubKey derives a player identity from a compressed secp256k1
// public key. Registration and signature checks both go through this, so
// an identity can never be claimed by a second key.
func PlayerIDForPubKey(pub *secp256k1.PublicKey) rpsgame.PlayerID {
	sum := blake256.Sum256(pub.SerializeCompressed())
	var id rpsgame.PlayerID
	copy(id[:], sum[:])
	return id
}

// RegisterPlayer stores a pubkey and returns the identity derived from
// it. Re-registering the same key is a no-op; the derivation makes it
// impossible to overwrite someone else's record.
func (s *Server) RegisterPlayer(ctx context.Context, pubKey []byte) (rpsgame.PlayerID, error) {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return rpsgame.PlayerID{}, fmt.Errorf("parse pubkey: %w", err)
	}
	id := PlayerIDForPubKey(pub)
	rec := &serverdb.PlayerRecord{ID: id, PubKey: pub.SerializeCompressed()}
	if err := s.db.SavePlayer(ctx, rec); err != nil {
		return rpsgame.PlayerID{}, err
	}
	// Seed the stats record so fresh players are queryable before their
	// first game. Never clobber an existing record on re-registration.
	if _, err := s.db.FetchPlayerInfo(ctx, id, s.cfg.Asset); errors.Is(err, serverdb.ErrPlayerInfoNotFound) {
		if err := s.db.SavePlayerInfo(ctx, rpsgame.NewPlayerInfo(id, s.cfg.Asset)); err != nil {
			return rpsgame.PlayerID{}, err
		}
	}
	s.log.Infof("registered player %s", id)
	return id, nil
}

// verifySignature checks a schnorr signature from a registered player
// over the blake256 digest of msg.
func (s *Server) verifySignature(ctx context.Context, caller rpsgame.PlayerID, msg, sigBytes []byte) error {
	rec, err := s.db.FetchPlayer(ctx, caller)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, caller)
	}
	pub, err := secp256k1.ParsePubKey(rec.PubKey)
	if err != nil {
		return fmt.Errorf("stored pubkey for %s corrupt: %w", caller, err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	digest := blake256.Sum256(msg)
	if !sig.Verify(digest[:], pub) {
		return ErrBadSignature
	}
	return nil
}

// SignMessage produces the schnorr signature the server expects for a
// canonical request message. Clients and the bot use this.
func SignMessage(priv *secp256k1.PrivateKey, msg []byte) ([]byte, error) {
	digest := blake256.Sum256(msg)
	sig, err := schnorr.Sign(priv, digest[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// Canonical request messages. Every authenticated operation signs the
// exact byte string built here; any drift between signer and verifier is
// a rejected request, so keep these as dumb as possible.

func optU64(v *uint64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func CreateGameMessage(player rpsgame.PlayerID, seed uint64, commitment rpsgame.Commitment,
	wager uint64, entryProof *rpsgame.EntryProof) []byte {
	proof := "-"
	if entryProof != nil {
		proof = entryProof.String()
	}
	return []byte(fmt.Sprintf("rps/v1|create_game|%s|%d|%s|%d|%s",
		player, seed, commitment, wager, proof))
}

func JoinGameMessage(player rpsgame.PlayerID, gameID rpsgame.GameID,
	choice rpsgame.Choice, secret *uint64) []byte {
	return []byte(fmt.Sprintf("rps/v1|join_game|%s|%s|%s|%s",
		player, gameID, choice, optU64(secret)))
}

func RevealMessage(player rpsgame.PlayerID, gameID rpsgame.GameID,
	salt uint64, choice rpsgame.Choice) []byte {
	return []byte(fmt.Sprintf("rps/v1|reveal|%s|%s|%d|%s",
		player, gameID, salt, choice))
}

func ExpireGameMessage(caller rpsgame.PlayerID, gameID rpsgame.GameID) []byte {
	return []byte(fmt.Sprintf("rps/v1|expire_game|%s|%s", caller, gameID))
}

func CleanGameMessage(caller rpsgame.PlayerID, gameID rpsgame.GameID) []byte {
	return []byte(fmt.Sprintf("rps/v1|clean_game|%s|%s", caller, gameID))
}

func CreatePoolMessage(caller rpsgame.PlayerID, seed uint64, botAuthority rpsgame.PlayerID) []byte {
	return []byte(fmt.Sprintf("rps/v1|create_pool|%s|%d|%s", caller, seed, botAuthority))
}

func PoolDepositMessage(player rpsgame.PlayerID, amount uint64) []byte {
	return []byte(fmt.Sprintf("rps/v1|pool_deposit|%s|%d", player, amount))
}

func PoolWithdrawMessage(player rpsgame.PlayerID, shares uint64) []byte {
	return []byte(fmt.Sprintf("rps/v1|pool_withdraw|%s|%d", player, shares))
}

func PoolPlayMessage(caller rpsgame.PlayerID, gameID rpsgame.GameID,
	choice rpsgame.Choice, secret *uint64) []byte {
	return []byte(fmt.Sprintf("rps/v1|pool_play|%s|%s|%s|%s",
		caller, gameID, choice, optU64(secret)))
}

func PoolExpireMessage(caller rpsgame.PlayerID, gameID rpsgame.GameID) []byte {
	return []byte(fmt.Sprintf("rps/v1|pool_expire|%s|%s", caller, gameID))
}
