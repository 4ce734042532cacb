// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jc4p/llm-rater-frame/contracts/favorite"
	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/jc4p/llm-rater-frame/store/memorydb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHash = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000042")

// stubGateway answers every receipt lookup with the same receipt.
type stubGateway struct {
	receipt *types.Receipt
}

func (g *stubGateway) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if g.receipt == nil || g.receipt.TxHash != hash {
		return nil, nil
	}
	return g.receipt, nil
}

func (g *stubGateway) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (g *stubGateway) CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error) {
	return nil, nil
}

type testServer struct {
	db  *memorydb.Database
	gw  *stubGateway
	nft *favorite.FavoriteNFT
	srv *Server
	ts  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	nft, err := favorite.NewFavoriteNFT(favorite.DefaultAddress)
	require.NoError(t, err)

	db := memorydb.New()
	gw := &stubGateway{}
	poller := mint.NewPoller(gw, 2, func() backoff.BackOff { return &backoff.ZeroBackOff{} })
	reconciler := mint.NewReconciler(db, poller, mint.NewInterpreter(nft, gw, mint.InterpreterConfig{}))

	srv, err := New(db, reconciler, mint.NewCatalog(db, "", 0), "https://frame.example")
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return &testServer{db: db, gw: gw, nft: nft, srv: srv, ts: ts}
}

func (s *testServer) mined(tokenID int64) {
	s.gw.receipt = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      testHash,
		BlockNumber: big.NewInt(100),
		Logs: []*types.Log{{
			Address: s.nft.Address(),
			Topics: []common.Hash{
				s.nft.TransferTopic(),
				{},
				common.HexToHash("0xaa"),
				common.BigToHash(big.NewInt(tokenID)),
			},
		}},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, out := s.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "https://frame.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, "OPTIONS", "/api/update-token", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestFavoriteLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, out := s.do(t, "GET", "/api/check-favorite?fid=1001", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["hasFavorite"])
	assert.Nil(t, out["favorite"])

	resp, out = s.do(t, "POST", "/api/save-favorite", SaveFavoriteRequest{FID: 1001, FavoriteLLM: "gemini-2.0"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	rowID := int64(out["rowId"].(float64))

	resp, out = s.do(t, "GET", "/api/check-favorite?fid=1001", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["hasFavorite"])
	fav := out["favorite"].(map[string]interface{})
	assert.Equal(t, float64(rowID), fav["id"])
	assert.Equal(t, "gemini-2.0", fav["favorite_llm"])
	assert.Equal(t, "unsubmitted", fav["status"])

	resp, out = s.do(t, "POST", "/api/nft-image", NFTImageRequest{RowID: rowID, ImageURL: "https://images.example/1.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://images.example/1.png", out["imageUrl"])

}

func TestSaveFavoriteValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing fid", SaveFavoriteRequest{FavoriteLLM: "gpt-4.5"}, "Missing required fields"},
		{"unknown llm", SaveFavoriteRequest{FID: 1, FavoriteLLM: "llama"}, "Invalid favorite_llm"},
		{"malformed", "{", "malformed JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := s.do(t, "POST", "/api/save-favorite", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, out["error"], tt.want)
		})
	}
	assert.Zero(t, s.db.Len())
}

func TestUpdateToken(t *testing.T) {
	s := newTestServer(t)
	s.db.Insert(mint.Row{ID: 42, FID: 1001, FavoriteLLM: "claude-3.5", CreatedAt: time.Now()})
	s.mined(7)

	resp, out := s.do(t, "POST", "/api/update-token", UpdateTokenRequest{RowID: 42, TxHash: testHash.Hex()})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", out)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(7), out["tokenId"])
	assert.Equal(t, testHash.Hex(), out["txHash"])
	assert.Equal(t, "confirmed", out["status"])
	assert.Equal(t, "exact", out["confidence"])

	resp, out = s.do(t, "GET", "/api/tokens/7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AI Personality Mirror #7", out["name"])
}

func TestUpdateTokenErrors(t *testing.T) {
	s := newTestServer(t)
	s.db.Insert(mint.Row{ID: 42, FID: 1001, FavoriteLLM: "claude-3.5", CreatedAt: time.Now()})
	token := uint64(3)
	s.db.Insert(mint.Row{ID: 43, FID: 1002, FavoriteLLM: "gpt-4.5", TokenID: &token, Status: mint.StatusConfirmed, CreatedAt: time.Now()})

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"no row", `{"txHash":"` + testHash.Hex() + `"}`, http.StatusBadRequest},
		{"no token info", `{"rowId":42}`, http.StatusBadRequest},
		{"short hash", `{"rowId":42,"txHash":"0x1234"}`, http.StatusBadRequest},
		{"unknown row", `{"rowId":99,"tokenId":5}`, http.StatusNotFound},
		{"token of another row", `{"rowId":42,"tokenId":3}`, http.StatusConflict},
		{"resolved row", `{"rowId":43,"tokenId":4}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := s.do(t, "POST", "/api/update-token", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestUpdateTokenPending(t *testing.T) {
	s := newTestServer(t)
	s.db.Insert(mint.Row{ID: 42, FID: 1001, FavoriteLLM: "claude-3.5", CreatedAt: time.Now()})

	resp, out := s.do(t, "POST", "/api/update-token", UpdateTokenRequest{RowID: 42, TxHash: testHash.Hex()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", out["status"])
	assert.Nil(t, out["tokenId"])

	// The receipt lands later; a re-check resolves the row.
	s.mined(7)
	resp, out = s.do(t, "GET", "/api/debug-tx?txHash="+testHash.Hex(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(7), out["tokenId"])
	assert.Equal(t, float64(42), out["rowId"])
	debug := out["debugInfo"].(map[string]interface{})
	assert.Equal(t, "mint-event", debug["tokenIdSource"])

	row, err := s.db.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, mint.StatusConfirmed, row.Status)
}

func TestDebugTxValidation(t *testing.T) {
	s := newTestServer(t)

	resp, out := s.do(t, "GET", "/api/debug-tx", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "txHash")

	resp, _ = s.do(t, "GET", "/api/debug-tx?txHash=0x12", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenMetadataErrors(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, "GET", "/api/tokens/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := s.do(t, "GET", "/api/tokens/12", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Token not found", out["error"])
}

func TestNFTImageValidation(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, "POST", "/api/nft-image", NFTImageRequest{RowID: 1, ImageURL: "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/api/nft-image", NFTImageRequest{RowID: 5, ImageURL: "https://images.example/5.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJSONRPCEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.db.Insert(mint.Row{ID: 42, FID: 1001, FavoriteLLM: "claude-3.5", CreatedAt: time.Now()})
	s.mined(9)

	client, err := rpc.DialHTTP(s.ts.URL + "/rpc")
	require.NoError(t, err)
	defer client.Close()

	var res mint.SubmitResult
	err = client.CallContext(context.Background(), &res, "mint_submitReconciliation", 42, mint.TokenArgs{TxHash: testHash.Hex()[2:]})
	var rerr rpc.Error
	require.ErrorAs(t, err, &rerr, "hash without prefix is rejected")
	assert.Equal(t, -32602, rerr.ErrorCode())

	err = client.CallContext(context.Background(), &res, "mint_submitReconciliation", 42, mint.TokenArgs{TxHash: testHash.Hex()})
	require.NoError(t, err)
	require.NotNil(t, res.TokenID)
	assert.Equal(t, uint64(9), *res.TokenID)
}
