package server

import (
	"context"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/solanaGames/rps-go/rpsgame"
)

func TestRegisterAndVerify(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("genkey: %v", err)
	}
	id, err := h.srv.RegisterPlayer(ctx, priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != PlayerIDForPubKey(priv.PubKey()) {
		t.Fatal("registered identity does not match key derivation")
	}

	msg := CreateGameMessage(id, 7, rpsgame.Commit(id, 36, rpsgame.Rock), 1000, nil)
	sig, err := SignMessage(priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := h.srv.verifySignature(ctx, id, msg, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Any drift in the signed message is a rejection.
	other := CreateGameMessage(id, 8, rpsgame.Commit(id, 36, rpsgame.Rock), 1000, nil)
	if err := h.srv.verifySignature(ctx, id, other, sig); err == nil {
		t.Fatal("verify accepted signature over different message")
	}

	// Unregistered identities cannot verify anything.
	if err := h.srv.verifySignature(ctx, testID(99), msg, sig); err == nil {
		t.Fatal("verify accepted unknown identity")
	}
}

func TestRegisterRejectsGarbage(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.srv.RegisterPlayer(context.Background(), []byte{1, 2, 3}); err == nil {
		t.Fatal("accepted malformed pubkey")
	}
}

func TestPoolAuthorityDerivation(t *testing.T) {
	if PoolAuthorityFromSeed(1) == PoolAuthorityFromSeed(2) {
		t.Fatal("different seeds produced the same authority")
	}
	if PoolAuthorityFromSeed(1) != PoolAuthorityFromSeed(1) {
		t.Fatal("derivation not deterministic")
	}
}
