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
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jc4p/llm-rater-frame/contracts/favorite"
	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/stretchr/testify/require"
)

var (
	minter    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	otherUser = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testHash  = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000042")
)

func testNFT(t *testing.T) *favorite.FavoriteNFT {
	t.Helper()
	nft, err := favorite.NewFavoriteNFT(favorite.DefaultAddress)
	require.NoError(t, err)
	return nft
}

func transferLog(nft *favorite.FavoriteNFT, from, to common.Address, tokenID *big.Int) *types.Log {
	return &types.Log{
		Address: nft.Address(),
		Topics: []common.Hash{
			nft.TransferTopic(),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}

func mintLog(nft *favorite.FavoriteNFT, tokenID uint64) *types.Log {
	return transferLog(nft, common.Address{}, minter, new(big.Int).SetUint64(tokenID))
}

func newReceipt(status uint64, block int64, logs ...*types.Log) *types.Receipt {
	for i, lg := range logs {
		lg.Index = uint(i)
		lg.TxHash = testHash
	}
	return &types.Receipt{
		Status:      status,
		TxHash:      testHash,
		BlockNumber: big.NewInt(block),
		Logs:        logs,
	}
}

// fakeGateway is a scripted chain.  receipt is invoked with the 1-based
// number of the lookup.
type fakeGateway struct {
	mu      sync.Mutex
	receipt func(call int) (*types.Receipt, error)
	lookups int

	head    uint64
	headErr error
	supply  *big.Int
	owner   common.Address
	ownerOf func(id uint64) (common.Address, error)
	callErr error
	calls   int
}

func (g *fakeGateway) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	g.mu.Lock()
	g.lookups++
	call := g.lookups
	g.mu.Unlock()

	if g.receipt == nil {
		return nil, nil
	}
	return g.receipt(call)
}

func (g *fakeGateway) BlockNumber(ctx context.Context) (uint64, error) {
	return g.head, g.headErr
}

func (g *fakeGateway) CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.callErr != nil {
		return nil, g.callErr
	}
	switch {
	case bytes.HasPrefix(input, common.FromHex("0x18160ddd")):
		supply := g.supply
		if supply == nil {
			supply = new(big.Int)
		}
		return common.LeftPadBytes(supply.Bytes(), 32), nil
	case bytes.HasPrefix(input, common.FromHex("0x6352211e")):
		owner := g.owner
		if g.ownerOf != nil {
			var err error
			if owner, err = g.ownerOf(new(big.Int).SetBytes(input[4:]).Uint64()); err != nil {
				return nil, err
			}
		}
		return common.LeftPadBytes(owner.Bytes(), 32), nil
	}
	return nil, nil
}

func (g *fakeGateway) Lookups() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookups
}

// after returns a receipt script yielding r from the n-th lookup on.
func after(n int, r *types.Receipt) func(int) (*types.Receipt, error) {
	return func(call int) (*types.Receipt, error) {
		if call < n {
			return nil, nil
		}
		return r, nil
	}
}

func instantPoller(gw mint.Gateway, attempts int) *mint.Poller {
	return mint.NewPoller(gw, attempts, func() backoff.BackOff { return &backoff.ZeroBackOff{} })
}
