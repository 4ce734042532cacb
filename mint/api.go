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
)

// JSON-RPC error codes of the mint namespace.
const (
	codeInvalidParams = -32602
	codeInternal      = -32603
	codeNotFound      = -32001
	codeConflict      = -32002
)

// rpcError carries a JSON-RPC error code for a reconciliation error.
type rpcError struct {
	err  error
	code int
}

func (e *rpcError) Error() string          { return e.err.Error() }
func (e *rpcError) ErrorCode() int         { return e.code }
func (e *rpcError) ErrorData() interface{} { return Kind(e.err) }

// Kind classifies err into the coarse categories exposed to clients:
// "validation", "not_found", "conflict" or "internal".
func Kind(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrRowNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenConflict), errors.Is(err, ErrTokenTaken), errors.Is(err, ErrTxHashConflict):
		return "conflict"
	default:
		return "internal"
	}
}

func toRPCError(err error) error {
	switch Kind(err) {
	case "validation":
		return &rpcError{err, codeInvalidParams}
	case "not_found":
		return &rpcError{err, codeNotFound}
	case "conflict":
		return &rpcError{err, codeConflict}
	default:
		return &rpcError{err, codeInternal}
	}
}

// ──────────────────────────────────────────────
//  JSON-RPC API (namespace "mint")
// ──────────────────────────────────────────────

// API exposes the reconciler over JSON-RPC when registered on a go-ethereum
// rpc.Server.  Method namespace: "mint".
type API struct {
	reconciler *Reconciler
}

// NewAPI creates a JSON-RPC API backed by the given reconciler.
func NewAPI(reconciler *Reconciler) *API {
	return &API{reconciler: reconciler}
}

// TokenArgs is what a client knows about a mint when it reports it.
type TokenArgs struct {
	TxHash  string  `json:"txHash"`
	TokenID *uint64 `json:"tokenId"`
}

// SubmitResult is the answer of a reconciliation submission.
type SubmitResult struct {
	Success    bool       `json:"success"`
	TokenID    *uint64    `json:"tokenId"`
	TxHash     *string    `json:"txHash"`
	Status     Status     `json:"status"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// NewSubmitResult reports the row state after a reconciliation pass.
func NewSubmitResult(out *Outcome) *SubmitResult {
	return &SubmitResult{
		Success:    true,
		TokenID:    out.TokenID,
		TxHash:     out.TxHash,
		Status:     out.Status,
		Confidence: out.Confidence,
	}
}

// SubmitReconciliation handles "mint_submitReconciliation" RPC calls.
func (api *API) SubmitReconciliation(ctx context.Context, rowID int64, args TokenArgs) (*SubmitResult, error) {
	out, err := api.reconciler.Reconcile(ctx, Request{RowID: rowID, TxHash: args.TxHash, TokenID: args.TokenID})
	if err != nil {
		return nil, toRPCError(err)
	}
	return NewSubmitResult(out), nil
}

// RecheckTransaction handles "mint_recheckTransaction" RPC calls.
func (api *API) RecheckTransaction(ctx context.Context, txHash string) (*RecheckResult, error) {
	res, err := api.reconciler.Recheck(ctx, txHash)
	if err != nil {
		return nil, toRPCError(err)
	}
	return res, nil
}
