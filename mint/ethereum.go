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

package mint

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultRPCTimeout bounds a single gateway round trip.
const DefaultRPCTimeout = 10 * time.Second

// EthereumGateway implements Gateway over an Ethereum JSON-RPC endpoint.
type EthereumGateway struct {
	client  *ethclient.Client
	timeout time.Duration
}

// NewEthereumGateway wraps an already dialled RPC client.  A zero timeout
// selects DefaultRPCTimeout.
func NewEthereumGateway(client *rpc.Client, timeout time.Duration) *EthereumGateway {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return &EthereumGateway{client: ethclient.NewClient(client), timeout: timeout}
}

// DialGateway connects to the endpoint at rawurl.
func DialGateway(ctx context.Context, rawurl string, timeout time.Duration) (*EthereumGateway, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, &TransportError{Method: "dial", Err: err}
	}
	return NewEthereumGateway(client, timeout), nil
}

// Close tears down the underlying connection.
func (g *EthereumGateway) Close() { g.client.Close() }

func (g *EthereumGateway) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &TransportError{Method: "eth_getTransactionReceipt", Err: err}
	}
	return receipt, nil
}

func (g *EthereumGateway) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return 0, &TransportError{Method: "eth_blockNumber", Err: err}
	}
	return head, nil
}

func (g *EthereumGateway) CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, &TransportError{Method: "eth_call", Err: err}
	}
	return out, nil
}

// ChainID returns the chain id reported by the endpoint.
func (g *EthereumGateway) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	id, err := g.client.ChainID(ctx)
	if err != nil {
		return nil, &TransportError{Method: "eth_chainId", Err: err}
	}
	return id, nil
}
