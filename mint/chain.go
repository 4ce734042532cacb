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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gateway is the chain access the reconciler needs.  Every call is a single
// JSON-RPC round trip; retrying is the Poller's job.
type Gateway interface {
	// TransactionReceipt returns the receipt of a mined transaction, or nil
	// without an error when the node does not know the receipt yet.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// CallContract executes a read-only call against the latest state and
	// returns the raw return data.
	CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error)
}
