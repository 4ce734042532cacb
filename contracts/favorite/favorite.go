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

// Package favorite provides Go bindings for the favorite-LLM collection
// contract.  Transactions are sent by user wallets; these bindings only
// decode events and encode/decode read-only calls, leaving transport to the
// caller.
package favorite

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jc4p/llm-rater-frame/contracts/favorite/contract"
)

// DefaultAddress is the collection deployed on Base mainnet.
var DefaultAddress = common.HexToAddress("0x3f54188e5b815b60da5b9354137f3e2c04435322")

// BaseChainID is the chain the collection lives on.
const BaseChainID = 8453

var errUnexpectedOutput = errors.New("favorite: unexpected call output")

// FavoriteNFT binds the collection ABI to a deployed address.
type FavoriteNFT struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
}

// NewFavoriteNFT parses the collection ABI for the contract at addr.
func NewFavoriteNFT(addr common.Address) (*FavoriteNFT, error) {
	parsed, err := abi.JSON(strings.NewReader(contract.FavoriteNFTABI))
	if err != nil {
		return nil, err
	}
	// Calls go through the reconciler's gateway, so no backend is bound here.
	bound := bind.NewBoundContract(addr, parsed, nil, nil, nil)
	return &FavoriteNFT{
		abi:      parsed,
		address:  addr,
		contract: bound,
	}, nil
}

// Address returns the collection address.
func (c *FavoriteNFT) Address() common.Address { return c.address }

// TransferTopic is the signature topic of Transfer(address,address,uint256).
func (c *FavoriteNFT) TransferTopic() common.Hash {
	return c.abi.Events["Transfer"].ID
}

// ──────────────────────────────────────────────
//  Events
// ──────────────────────────────────────────────

// Transfer is a decoded ERC-721 Transfer event.
type Transfer struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
}

// IsMint reports whether the transfer created the token.
func (t *Transfer) IsMint() bool {
	return t.From == (common.Address{})
}

// UnpackTransfer decodes a Transfer log with all three parameters indexed.
// Logs with a different signature or topic count are rejected.
func (c *FavoriteNFT) UnpackTransfer(log types.Log) (*Transfer, error) {
	ev := new(Transfer)
	if err := c.contract.UnpackLog(ev, "Transfer", log); err != nil {
		return nil, err
	}
	return ev, nil
}

// ──────────────────────────────────────────────
//  Read calls
// ──────────────────────────────────────────────

// PackTotalSupply returns the eth_call input for totalSupply().
func (c *FavoriteNFT) PackTotalSupply() ([]byte, error) {
	return c.abi.Pack("totalSupply")
}

// UnpackTotalSupply decodes the totalSupply() return data.
func (c *FavoriteNFT) UnpackTotalSupply(data []byte) (*big.Int, error) {
	out, err := c.abi.Unpack("totalSupply", data)
	if err != nil {
		return nil, err
	}
	supply, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: totalSupply returned %T", errUnexpectedOutput, out[0])
	}
	return supply, nil
}

// PackOwnerOf returns the eth_call input for ownerOf(tokenId).
func (c *FavoriteNFT) PackOwnerOf(tokenId *big.Int) ([]byte, error) {
	return c.abi.Pack("ownerOf", tokenId)
}

// UnpackOwnerOf decodes the ownerOf(uint256) return data.
func (c *FavoriteNFT) UnpackOwnerOf(data []byte) (common.Address, error) {
	out, err := c.abi.Unpack("ownerOf", data)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: ownerOf returned %T", errUnexpectedOutput, out[0])
	}
	return owner, nil
}

// MintSelector is the 4-byte selector wallets call to mint.
func (c *FavoriteNFT) MintSelector() []byte {
	return c.abi.Methods["mint"].ID
}
