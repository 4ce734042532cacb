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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jc4p/llm-rater-frame/contracts/favorite"
)

// Token id sources, in the order the interpreter tries them.
const (
	SourceMintEvent   = "mint-event"   // abi-decoded Transfer from the zero address
	SourceMintTopics  = "mint-topics"  // raw topics of a Transfer from the zero address
	SourceTotalSupply = "total-supply" // supply of a recent block, a guess
)

// DefaultRecencyWindow is how many blocks behind head a transaction may be for
// the supply heuristic to apply.
const DefaultRecencyWindow = 10

// Extraction is a token id recovered from a receipt.
type Extraction struct {
	TokenID    uint64     `json:"tokenId"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source"`
}

// LogInfo describes one receipt log for debugging.
type LogInfo struct {
	Index        uint           `json:"index"`
	Address      common.Address `json:"address"`
	FromContract bool           `json:"isFromContract"`
	Topics       []common.Hash  `json:"topics"`
	TopicHints   []string       `json:"topicsDecoded"`
	Data         hexutil.Bytes  `json:"data"`
}

// DecodeAttempt records how a Transfer candidate was decoded.
type DecodeAttempt struct {
	LogIndex uint            `json:"logIndex"`
	Method   string          `json:"method"`
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	TokenID  string          `json:"tokenId,omitempty"`
	IsMint   bool            `json:"isMint"`
	Error    string          `json:"error,omitempty"`
}

// Diagnostics is the operational trail of one extraction.
type Diagnostics struct {
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	Status          string          `json:"status"`
	Contract        common.Address  `json:"contractAddress"`
	Logs            []LogInfo       `json:"allLogs"`
	ContractLogs    int             `json:"contractLogsCount"`
	Transfers       []DecodeAttempt `json:"transferEvents"`
	TotalSupply     string          `json:"totalSupply,omitempty"`
	HeadBlock       uint64          `json:"headBlock,omitempty"`
	CandidateOwner  *common.Address `json:"candidateOwner,omitempty"`
	NearbyOwners    []TokenOwner    `json:"potentialTokenIds,omitempty"`
	HeuristicError  string          `json:"heuristicError,omitempty"`
	TokenIDSource   string          `json:"tokenIdSource,omitempty"`
}

// TokenOwner is one ownerOf lookup around the supply-derived candidate.
type TokenOwner struct {
	TokenID uint64          `json:"tokenId"`
	Owner   *common.Address `json:"owner,omitempty"`
	Valid   bool            `json:"valid"`
	Error   string          `json:"error,omitempty"`
}

// Bounds of the ownerOf scan around the total supply.
const (
	ownersBelowSupply = 5
	ownersAboveSupply = 2
)

// InterpreterConfig tunes the extraction chain.
type InterpreterConfig struct {
	// TransferTopic overrides the mint signature topic.  Zero selects the
	// Transfer(address,address,uint256) topic of the collection ABI.
	TransferTopic common.Hash

	// Heuristic enables the total-supply guess when no mint log is present.
	Heuristic bool

	// RecencyWindow bounds how far behind head the transaction's block may be
	// for the heuristic to apply.  Zero selects DefaultRecencyWindow.
	RecencyWindow uint64

	// SkipStructuredDecode forces raw topic parsing.
	SkipStructuredDecode bool
}

// Interpreter extracts minted token ids from receipts of the collection.
type Interpreter struct {
	nft        *favorite.FavoriteNFT
	gateway    Gateway
	topic      common.Hash
	heuristic  bool
	window     uint64
	structured bool
	log        log.Logger
}

// NewInterpreter creates an interpreter for the collection bound in nft.  The
// gateway is only used by the supply heuristic and may be nil when the
// heuristic is disabled.
func NewInterpreter(nft *favorite.FavoriteNFT, gateway Gateway, config InterpreterConfig) *Interpreter {
	topic := config.TransferTopic
	if topic == (common.Hash{}) {
		topic = nft.TransferTopic()
	}
	window := config.RecencyWindow
	if window == 0 {
		window = DefaultRecencyWindow
	}
	return &Interpreter{
		nft:        nft,
		gateway:    gateway,
		topic:      topic,
		heuristic:  config.Heuristic && gateway != nil,
		window:     window,
		structured: !config.SkipStructuredDecode,
		log:        log.New("module", "interpreter", "contract", nft.Address()),
	}
}

// Extract returns the token id minted by the transaction of receipt, or nil if
// none can be determined.  Diagnostics are always returned.
func (in *Interpreter) Extract(ctx context.Context, receipt *types.Receipt) (*Extraction, *Diagnostics) {
	diag := in.describe(receipt)
	if receipt.Status != types.ReceiptStatusSuccessful {
		diag.TokenIDSource = "none: transaction execution failed"
		return nil, diag
	}

	var mintShaped bool
	for _, lg := range receipt.Logs {
		if lg.Address != in.nft.Address() || len(lg.Topics) == 0 || lg.Topics[0] != in.topic {
			continue
		}
		ex, shaped := in.decodeTransfer(lg, diag)
		if ex != nil {
			diag.TokenIDSource = ex.Source
			return ex, diag
		}
		mintShaped = mintShaped || shaped
	}
	if mintShaped {
		diag.TokenIDSource = "none: mint event carried an unusable token id"
		return nil, diag
	}
	if in.heuristic {
		if ex := in.guessFromSupply(ctx, receipt, diag); ex != nil {
			in.log.Warn("Token id inferred from total supply", "tx", receipt.TxHash, "tokenId", ex.TokenID)
			diag.TokenIDSource = ex.Source
			return ex, diag
		}
	}
	diag.TokenIDSource = "none: no mint event found"
	return nil, diag
}

// decodeTransfer tries the structured decoder first and falls back to raw
// topic parsing.  shaped reports whether the log is a mint, even when its
// token id could not be used.
func (in *Interpreter) decodeTransfer(lg *types.Log, diag *Diagnostics) (ex *Extraction, shaped bool) {
	if in.structured {
		attempt := DecodeAttempt{LogIndex: lg.Index, Method: "abi"}
		ev, err := in.nft.UnpackTransfer(*lg)
		if err == nil {
			attempt.From, attempt.To = &ev.From, &ev.To
			attempt.TokenID = ev.TokenId.String()
			attempt.IsMint = ev.IsMint()
			if !attempt.IsMint {
				diag.Transfers = append(diag.Transfers, attempt)
				return nil, false
			}
			ex = in.exact(ev.TokenId, SourceMintEvent, &attempt)
			diag.Transfers = append(diag.Transfers, attempt)
			return ex, true
		}
		attempt.Error = err.Error()
		diag.Transfers = append(diag.Transfers, attempt)
	}

	attempt := DecodeAttempt{LogIndex: lg.Index, Method: "topics"}
	defer func() { diag.Transfers = append(diag.Transfers, attempt) }()

	if len(lg.Topics) < 4 {
		attempt.Error = fmt.Sprintf("%d topics, token id is not indexed", len(lg.Topics))
		return nil, false
	}
	from := common.BytesToAddress(lg.Topics[1].Bytes())
	to := common.BytesToAddress(lg.Topics[2].Bytes())
	attempt.From, attempt.To = &from, &to

	id := new(big.Int).SetBytes(lg.Topics[3].Bytes())
	attempt.TokenID = id.String()
	attempt.IsMint = lg.Topics[1] == (common.Hash{})
	if !attempt.IsMint {
		return nil, false
	}
	return in.exact(id, SourceMintTopics, &attempt), true
}

func (in *Interpreter) exact(id *big.Int, source string, attempt *DecodeAttempt) *Extraction {
	if !id.IsUint64() || id.Uint64() > MaxTokenID {
		attempt.Error = "token id exceeds the storable range"
		return nil
	}
	return &Extraction{TokenID: id.Uint64(), Confidence: ConfidenceExact, Source: source}
}

// guessFromSupply assumes the transaction minted the newest token when it sits
// in a recent block.  The guess is only as good as the assumption that nobody
// else minted in between.
func (in *Interpreter) guessFromSupply(ctx context.Context, receipt *types.Receipt, diag *Diagnostics) *Extraction {
	input, err := in.nft.PackTotalSupply()
	if err != nil {
		diag.HeuristicError = err.Error()
		return nil
	}
	out, err := in.gateway.CallContract(ctx, in.nft.Address(), input)
	if err != nil {
		diag.HeuristicError = err.Error()
		return nil
	}
	supply, err := in.nft.UnpackTotalSupply(out)
	if err != nil {
		diag.HeuristicError = fmt.Sprintf("decode totalSupply: %v", err)
		return nil
	}
	diag.TotalSupply = supply.String()

	head, err := in.gateway.BlockNumber(ctx)
	if err != nil {
		diag.HeuristicError = err.Error()
		return nil
	}
	diag.HeadBlock = head

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	var lag uint64
	if head > block {
		lag = head - block
	}
	if lag >= in.window {
		diag.HeuristicError = fmt.Sprintf("transaction is %d blocks behind head, window is %d", lag, in.window)
		return nil
	}
	if supply.Sign() == 0 || !supply.IsUint64() || supply.Uint64() > MaxTokenID {
		diag.HeuristicError = "total supply is not a usable token id"
		return nil
	}

	// Ownership around the candidate is informational only.
	candidate := supply.Uint64()
	diag.NearbyOwners = in.scanOwners(ctx, candidate)
	for _, entry := range diag.NearbyOwners {
		if entry.TokenID == candidate && entry.Valid {
			diag.CandidateOwner = entry.Owner
		}
	}
	return &Extraction{TokenID: candidate, Confidence: ConfidenceHeuristic, Source: SourceTotalSupply}
}

// scanOwners looks up the owners of the token ids from a few below supply to
// a few above it.  Ids that do not exist yet come back with the call error.
func (in *Interpreter) scanOwners(ctx context.Context, supply uint64) []TokenOwner {
	first := uint64(1)
	if supply > ownersBelowSupply {
		first = supply - ownersBelowSupply
	}
	last := supply + ownersAboveSupply

	owners := make([]TokenOwner, 0, last-first+1)
	for id := first; id <= last; id++ {
		entry := TokenOwner{TokenID: id}
		owner, err := in.ownerOf(ctx, id)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Owner, entry.Valid = &owner, true
		}
		owners = append(owners, entry)
	}
	return owners
}

func (in *Interpreter) ownerOf(ctx context.Context, id uint64) (common.Address, error) {
	input, err := in.nft.PackOwnerOf(new(big.Int).SetUint64(id))
	if err != nil {
		return common.Address{}, err
	}
	out, err := in.gateway.CallContract(ctx, in.nft.Address(), input)
	if err != nil {
		return common.Address{}, err
	}
	return in.nft.UnpackOwnerOf(out)
}

func (in *Interpreter) describe(receipt *types.Receipt) *Diagnostics {
	diag := &Diagnostics{
		TransactionHash: receipt.TxHash,
		Status:          "success",
		Contract:        in.nft.Address(),
		Logs:            make([]LogInfo, 0, len(receipt.Logs)),
	}
	if receipt.BlockNumber != nil {
		diag.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		diag.Status = "failed"
	}
	for _, lg := range receipt.Logs {
		info := LogInfo{
			Index:        lg.Index,
			Address:      lg.Address,
			FromContract: lg.Address == in.nft.Address(),
			Topics:       lg.Topics,
			TopicHints:   make([]string, len(lg.Topics)),
			Data:         lg.Data,
		}
		for i, topic := range lg.Topics {
			info.TopicHints[i] = topicHint(topic)
		}
		if info.FromContract {
			diag.ContractLogs++
		}
		diag.Logs = append(diag.Logs, info)
	}
	return diag
}

// topicHint renders a topic word as the types it could plausibly hold.
func topicHint(topic common.Hash) string {
	n := new(big.Int).SetBytes(topic.Bytes())
	for _, b := range topic[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return "integer " + n.String()
		}
	}
	return fmt.Sprintf("address %s / integer %s", common.BytesToAddress(topic.Bytes()).Hex(), n.String())
}
