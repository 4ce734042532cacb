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

package mint_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode serves the handful of eth_ methods the gateway uses.
type fakeNode struct {
	receipts map[common.Hash]*types.Receipt
	broken   common.Hash
	head     uint64
	supply   *big.Int
}

func (n *fakeNode) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	if hash == n.broken {
		return nil, errors.New("header not found")
	}
	return n.receipts[hash], nil
}

func (n *fakeNode) BlockNumber() hexutil.Uint64 { return hexutil.Uint64(n.head) }

func (n *fakeNode) ChainId() *hexutil.Big { return (*hexutil.Big)(big.NewInt(8453)) }

func (n *fakeNode) Call(args map[string]interface{}, block string) (hexutil.Bytes, error) {
	if block != "latest" {
		return nil, errors.New("unexpected block " + block)
	}
	return common.LeftPadBytes(n.supply.Bytes(), 32), nil
}

func newNodeGateway(t *testing.T, node *fakeNode) *mint.EthereumGateway {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", node))
	gw := mint.NewEthereumGateway(rpc.DialInProc(server), time.Second)
	t.Cleanup(func() {
		gw.Close()
		server.Stop()
	})
	return gw
}

func TestEthereumGateway(t *testing.T) {
	nft := testNFT(t)
	receipt := newReceipt(types.ReceiptStatusSuccessful, 100, mintLog(nft, 7))
	node := &fakeNode{
		receipts: map[common.Hash]*types.Receipt{testHash: receipt},
		broken:   common.HexToHash("0xdead"),
		head:     103,
		supply:   big.NewInt(15),
	}
	gw := newNodeGateway(t, node)
	ctx := context.Background()

	got, err := gw.TransactionReceipt(ctx, testHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ReceiptStatusSuccessful, got.Status)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, receipt.Logs[0].Topics, got.Logs[0].Topics)

	missing, err := gw.TransactionReceipt(ctx, common.HexToHash("0x01"))
	assert.NoError(t, err, "an unknown receipt is not an error")
	assert.Nil(t, missing)

	_, err = gw.TransactionReceipt(ctx, node.broken)
	var terr *mint.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "eth_getTransactionReceipt", terr.Method)

	head, err := gw.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(103), head)

	chainID, err := gw.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8453), chainID.Int64())

	input, err := nft.PackTotalSupply()
	require.NoError(t, err)
	out, err := gw.CallContract(ctx, nft.Address(), input)
	require.NoError(t, err)
	supply, err := nft.UnpackTotalSupply(out)
	require.NoError(t, err)
	assert.Equal(t, int64(15), supply.Int64())
}

func TestEthereumGatewayEndToEnd(t *testing.T) {
	nft := testNFT(t)
	node := &fakeNode{
		receipts: map[common.Hash]*types.Receipt{testHash: newReceipt(types.ReceiptStatusSuccessful, 100)},
		head:     103,
		supply:   big.NewInt(15),
	}
	gw := newNodeGateway(t, node)
	interp := mint.NewInterpreter(nft, gw, mint.InterpreterConfig{Heuristic: true})

	receipt, err := instantPoller(gw, 2).Poll(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	ex, _ := interp.Extract(context.Background(), receipt)
	require.NotNil(t, ex)
	assert.Equal(t, uint64(15), ex.TokenID)
	assert.Equal(t, mint.ConfidenceHeuristic, ex.Confidence)
}
