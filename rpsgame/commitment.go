package rpsgame

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
)

// Commitment is a one-way digest binding a player's identity, a secret
// salt, and a hidden choice. It is opened exactly once, at reveal time.
type Commitment [32]byte

func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Commitment) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return decodeDigest(s, c[:])
}

// EntryProof gates who may join a private game: joining requires the
// preimage secret.
type EntryProof [32]byte

func (e EntryProof) String() string {
	return hex.EncodeToString(e[:])
}

func (e EntryProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EntryProof) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return decodeDigest(s, e[:])
}

func decodeDigest(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("digest must be %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// Commit produces the commitment for (player, salt, choice):
// blake256(player || salt as u64 little-endian || choice byte).
func Commit(player PlayerID, salt uint64, choice Choice) Commitment {
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], salt)
	h := blake256.New()
	h.Write(player[:])
	h.Write(sb[:])
	h.Write([]byte{byte(choice)})
	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// VerifyCommitment recomputes and compares. Used only at reveal time; a
// mismatch is a hard rejection of the enclosing action.
func VerifyCommitment(player PlayerID, commitment Commitment, salt uint64, choice Choice) bool {
	return Commit(player, salt, choice) == commitment
}

// NewEntryProof produces the admission digest for a private game:
// blake256(gameID || secret as u64 little-endian).
func NewEntryProof(game GameID, secret uint64) EntryProof {
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], secret)
	h := blake256.New()
	h.Write(game[:])
	h.Write(sb[:])
	var e EntryProof
	copy(e[:], h.Sum(nil))
	return e
}

// VerifyEntry checks a join secret against the game's entry proof.
func VerifyEntry(game GameID, proof EntryProof, secret uint64) bool {
	return NewEntryProof(game, secret) == proof
}
