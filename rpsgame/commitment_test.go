package rpsgame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitmentRoundTrip(t *testing.T) {
	player := testPlayer(9)
	c := Commit(player, 36, Rock)

	assert.True(t, VerifyCommitment(player, c, 36, Rock))
	assert.False(t, VerifyCommitment(player, c, 37, Rock))
	assert.False(t, VerifyCommitment(player, c, 36, Paper))
	assert.False(t, VerifyCommitment(testPlayer(10), c, 36, Rock))
}

func TestCommitmentBindsIdentity(t *testing.T) {
	// Same salt and choice, different players, different digests. Without
	// this a spectator could replay another player's commitment.
	a := Commit(testPlayer(1), 5, Scissors)
	b := Commit(testPlayer(2), 5, Scissors)
	assert.NotEqual(t, a, b)
}

func TestEntryProofRoundTrip(t *testing.T) {
	gameA := GameIDFromSeed(1)
	gameB := GameIDFromSeed(2)
	proof := NewEntryProof(gameA, 123)

	assert.True(t, VerifyEntry(gameA, proof, 123))
	assert.False(t, VerifyEntry(gameA, proof, 124))
	// Secrets are bound to one game; knowing one lobby's secret opens
	// nothing else.
	assert.False(t, VerifyEntry(gameB, proof, 123))
}

func TestGameIDDeterministic(t *testing.T) {
	assert.Equal(t, GameIDFromSeed(55), GameIDFromSeed(55))
	assert.NotEqual(t, GameIDFromSeed(55), GameIDFromSeed(56))
}
