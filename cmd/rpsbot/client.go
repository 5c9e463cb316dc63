package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/solanaGames/rps-go/pool"
	"github.com/solanaGames/rps-go/rpsgame"
	"github.com/solanaGames/rps-go/server"
)

// apiClient talks to the rpsd HTTP API, signing every request with the
// bot's key.
type apiClient struct {
	base string
	priv *secp256k1.PrivateKey
	id   rpsgame.PlayerID
	http *http.Client
}

func newAPIClient(base string, priv *secp256k1.PrivateKey) *apiClient {
	return &apiClient{
		base: base,
		priv: priv,
		id:   server.PlayerIDForPubKey(priv.PubKey()),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: http %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) sign(msg []byte) (string, error) {
	sig, err := server.SignMessage(c.priv, msg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// register makes sure the server knows the bot's pubkey.
func (c *apiClient) register(ctx context.Context) error {
	body := map[string]string{
		"pubkey": hex.EncodeToString(c.priv.PubKey().SerializeCompressed()),
	}
	return c.post(ctx, "/players", body, nil)
}

// openGames lists challenges still waiting for a player 2.
func (c *apiClient) openGames(ctx context.Context) ([]*rpsgame.Game, error) {
	var games []*rpsgame.Game
	err := c.get(ctx, "/games", &games)
	return games, err
}

// poolPlay joins a game with pool funds via the bot-authority endpoint.
func (c *apiClient) poolPlay(ctx context.Context, gameID rpsgame.GameID,
	choice rpsgame.Choice) (*rpsgame.Game, error) {

	sig, err := c.sign(server.PoolPlayMessage(c.id, gameID, choice, nil))
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"player":  c.id.String(),
		"sig":     sig,
		"game_id": gameID.String(),
		"choice":  choice.String(),
	}
	var game rpsgame.Game
	if err := c.post(ctx, "/pool/play", body, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// poolStatus fetches the pool's balance sheet, mainly for the authority
// identity the pool plays under.
func (c *apiClient) poolStatus(ctx context.Context) (*pool.Status, error) {
	var status pool.Status
	if err := c.get(ctx, "/pool", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// poolExpire claims a timeout on a pool game via the bot-authority
// endpoint.
func (c *apiClient) poolExpire(ctx context.Context, gameID rpsgame.GameID) (*rpsgame.Game, error) {
	sig, err := c.sign(server.PoolExpireMessage(c.id, gameID))
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"player":  c.id.String(),
		"sig":     sig,
		"game_id": gameID.String(),
	}
	var game rpsgame.Game
	if err := c.post(ctx, "/pool/expire", body, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// settle triggers payout of a decided game.
func (c *apiClient) settle(ctx context.Context, gameID rpsgame.GameID) error {
	return c.post(ctx, "/games/"+gameID.String()+"/settle", struct{}{}, nil)
}
