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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// txHashLength is the length of a 0x-prefixed 32 byte hash.
const txHashLength = 2 + 2*common.HashLength

// ParseTxHash validates a transaction hash as handed over by a wallet.  Some
// wallets append data to the hash, so longer inputs are cut to 66 characters;
// shorter ones are rejected.
func ParseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Hash{}, &ValidationError{Field: "txHash", Reason: "missing 0x prefix"}
	}
	if len(s) < txHashLength {
		return common.Hash{}, &ValidationError{Field: "txHash", Reason: "hash should be 66 characters (0x + 64 hex chars)"}
	}
	if len(s) > txHashLength {
		log.Debug("Truncated long transaction hash", "input", s)
		s = s[:txHashLength]
	}
	raw, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return common.Hash{}, &ValidationError{Field: "txHash", Reason: err.Error()}
	}
	return common.BytesToHash(raw), nil
}

// Request asks for one reconciliation pass over a row.
type Request struct {
	RowID   int64
	TxHash  string
	TokenID *uint64
}

// Outcome is the best known state of a row after a reconciliation pass.
type Outcome struct {
	RowID      int64      `json:"rowId"`
	TokenID    *uint64    `json:"tokenId"`
	TxHash     *string    `json:"txHash"`
	Status     Status     `json:"status"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// DebugInfo is the operational trail of a transaction re-check.
type DebugInfo struct {
	PollAttempts []PollAttempt `json:"pollAttempts"`
	PollError    string        `json:"pollError,omitempty"`
	*Diagnostics
}

// RecheckResult is the answer of a transaction re-check.
type RecheckResult struct {
	TxHash     string     `json:"transaction"`
	Found      bool       `json:"found"`
	Status     Status     `json:"status"`
	TokenID    *uint64    `json:"tokenId"`
	Confidence Confidence `json:"confidence,omitempty"`
	RowID      *int64     `json:"rowId,omitempty"`
	Debug      *DebugInfo `json:"debugInfo"`
}

// Reconciler drives mint attempts from a submitted transaction hash to a
// resolved token id.  It holds no per-row state; every call reads and writes
// through the record store, so concurrent calls for one row converge.
type Reconciler struct {
	store  RecordStore
	poller *Poller
	interp *Interpreter
	log    log.Logger
}

// NewReconciler wires a reconciler from its collaborators.
func NewReconciler(store RecordStore, poller *Poller, interp *Interpreter) *Reconciler {
	return &Reconciler{
		store:  store,
		poller: poller,
		interp: interp,
		log:    log.New("module", "reconciler"),
	}
}

// Reconcile runs one reconciliation pass for a row.  A directly supplied
// token id is recorded as is.  Otherwise the transaction is polled and its
// logs interpreted; chain trouble degrades the row to pending or failed
// instead of failing the call.  Only validation and store errors are
// returned.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Outcome, error) {
	if req.RowID <= 0 {
		return nil, &ValidationError{Field: "rowId", Reason: "missing required field"}
	}
	var hash *common.Hash
	if req.TxHash != "" {
		h, err := ParseTxHash(req.TxHash)
		if err != nil {
			return nil, err
		}
		hash = &h
	}
	if hash == nil && req.TokenID == nil {
		return nil, &ValidationError{Field: "tokenId", Reason: "either tokenId or txHash is required"}
	}
	if req.TokenID != nil && *req.TokenID > MaxTokenID {
		return nil, &ValidationError{Field: "tokenId", Reason: "exceeds the storable range"}
	}
	if req.TokenID != nil {
		return r.recordDirect(ctx, req.RowID, hash, *req.TokenID)
	}
	return r.resolve(ctx, req.RowID, *hash)
}

// recordDirect stores a token id resolved by the caller.  The chain is not
// consulted.
func (r *Reconciler) recordDirect(ctx context.Context, rowID int64, hash *common.Hash, tokenID uint64) (*Outcome, error) {
	confirmed := StatusConfirmed
	patch := Patch{TokenID: &tokenID, Status: &confirmed}
	if hash != nil {
		hex := hash.Hex()
		patch.TxHash = &hex
	}
	row, err := r.update(ctx, rowID, patch)
	if err != nil {
		if errors.Is(err, ErrTokenConflict) {
			r.log.Error("Conflicting token id for row", "row", rowID, "tokenId", tokenID, "err", err)
		}
		return nil, err
	}
	r.log.Info("Token id recorded", "row", rowID, "tokenId", tokenID, "tx", orNone(row.TxHash))
	return outcomeOf(row, ""), nil
}

// resolve records hash on the row, then polls and interprets its receipt.
func (r *Reconciler) resolve(ctx context.Context, rowID int64, hash common.Hash) (*Outcome, error) {
	hex := hash.Hex()
	prev, err := r.store.Get(ctx, rowID)
	if err != nil {
		return nil, r.storeError("get", err)
	}
	// The hash is stored before touching the chain so it survives any
	// failure further down.  A revert already observed for this same
	// transaction is not demoted to submitted.
	reverted := prev.Status == StatusFailed && prev.TxHash != nil && strings.EqualFold(*prev.TxHash, hex)
	patch := Patch{TxHash: &hex}
	if !reverted {
		submitted := StatusSubmitted
		patch.Status = &submitted
	}
	row, err := r.update(ctx, rowID, patch)
	if err != nil {
		if errors.Is(err, ErrTxHashConflict) {
			r.log.Error("Row already carries another transaction", "row", rowID, "tx", hex)
		}
		return nil, err
	}
	if row.TokenID != nil {
		r.log.Debug("Row already resolved", "row", rowID, "tokenId", *row.TokenID)
		return outcomeOf(row, ""), nil
	}

	receipt, _, err := r.poller.Trace(ctx, hash)
	if err != nil {
		r.log.Warn("Receipt polling failed", "row", rowID, "tx", hex, "err", err)
	}
	if receipt == nil && reverted {
		r.log.Debug("No receipt, keeping failed status", "row", rowID, "tx", hex)
		return outcomeOf(row, ""), nil
	}
	status, ex, _ := r.settle(ctx, receipt)

	// Outcomes are persisted even when the caller went away mid-poll.
	return r.apply(context.WithoutCancel(ctx), rowID, hex, status, ex)
}

// Recheck inspects a transaction without a new submission.  When a row carries
// the hash and is not resolved yet, the row is reconciled as well.
func (r *Reconciler) Recheck(ctx context.Context, txHash string) (*RecheckResult, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}
	hex := hash.Hex()

	receipt, attempts, err := r.poller.Trace(ctx, hash)
	res := &RecheckResult{
		TxHash: hex,
		Found:  receipt != nil,
		Debug:  &DebugInfo{PollAttempts: attempts},
	}
	if err != nil {
		res.Debug.PollError = err.Error()
	}
	var ex *Extraction
	res.Status, ex, res.Debug.Diagnostics = r.settle(ctx, receipt)
	if ex != nil {
		res.TokenID, res.Confidence = &ex.TokenID, ex.Confidence
	}

	row, err := r.store.FindByTxHash(ctx, hex)
	switch {
	case errors.Is(err, ErrRowNotFound):
		return res, nil
	case err != nil:
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	res.RowID = &row.ID
	switch {
	case row.TokenID != nil:
		return res, nil
	case receipt == nil && row.Status == StatusFailed:
		// A missed lookup says nothing about a revert already seen.
		return res, nil
	case res.Status == StatusPending && row.Status == StatusPending:
		return res, nil
	}
	out, err := r.apply(context.WithoutCancel(ctx), row.ID, hex, res.Status, ex)
	if err != nil {
		return nil, err
	}
	r.log.Info("Row reconciled by re-check", "row", row.ID, "tx", hex, "status", out.Status)
	return res, nil
}

// settle maps a polled receipt to the status it implies and, on success, the
// extracted token id.
func (r *Reconciler) settle(ctx context.Context, receipt *types.Receipt) (Status, *Extraction, *Diagnostics) {
	if receipt == nil {
		return StatusPending, nil, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		r.log.Info("Mint transaction reverted", "tx", receipt.TxHash, "block", receipt.BlockNumber)
		_, diag := r.interp.Extract(ctx, receipt)
		return StatusFailed, nil, diag
	}
	ex, diag := r.interp.Extract(ctx, receipt)
	if ex == nil {
		r.log.Info("No token id in receipt", "tx", receipt.TxHash, "reason", diag.TokenIDSource)
		return StatusPending, nil, diag
	}
	return StatusConfirmed, ex, diag
}

// apply persists the result of a settle step.
func (r *Reconciler) apply(ctx context.Context, rowID int64, hex string, status Status, ex *Extraction) (*Outcome, error) {
	patch := Patch{Status: &status}
	if ex != nil {
		patch.TokenID = &ex.TokenID
	}
	row, err := r.update(ctx, rowID, patch)
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenConflict):
		// The stored id wins; a second resolution to another id is an
		// integrity problem worth a loud log, not an overwrite.
		r.log.Error("Conflicting token id resolution", "row", rowID, "tx", hex, "resolved", ex.TokenID, "confidence", ex.Confidence)
		if row, err = r.store.Get(ctx, rowID); err != nil {
			return nil, r.storeError("get", err)
		}
		return outcomeOf(row, ""), nil
	case errors.Is(err, ErrTokenTaken):
		pending := StatusPending
		if _, perr := r.update(ctx, rowID, Patch{Status: &pending}); perr != nil {
			return nil, perr
		}
		if ex.Confidence == ConfidenceHeuristic {
			r.log.Warn("Guessed token id belongs to another row, keeping row pending", "row", rowID, "tx", hex, "tokenId", ex.TokenID)
			return r.current(ctx, rowID)
		}
		r.log.Error("Minted token id already belongs to another row", "row", rowID, "tx", hex, "tokenId", ex.TokenID)
		return nil, err
	default:
		return nil, err
	}

	confidence := Confidence("")
	if ex != nil && row.TokenID != nil && *row.TokenID == ex.TokenID {
		confidence = ex.Confidence
	}
	r.log.Info("Mint reconciled", "row", rowID, "tx", hex, "status", row.Status, "tokenId", orNone(row.TokenID), "confidence", confidence)
	return outcomeOf(row, confidence), nil
}

func (r *Reconciler) current(ctx context.Context, rowID int64) (*Outcome, error) {
	row, err := r.store.Get(ctx, rowID)
	if err != nil {
		return nil, r.storeError("get", err)
	}
	return outcomeOf(row, ""), nil
}

func (r *Reconciler) update(ctx context.Context, rowID int64, patch Patch) (*Row, error) {
	row, err := r.store.Update(ctx, rowID, patch)
	if err != nil {
		return nil, r.storeError("update", err)
	}
	return row, nil
}

// storeError passes domain errors through and wraps everything else.
func (r *Reconciler) storeError(op string, err error) error {
	switch {
	case errors.Is(err, ErrRowNotFound),
		errors.Is(err, ErrTokenConflict),
		errors.Is(err, ErrTokenTaken),
		errors.Is(err, ErrTxHashConflict):
		return err
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return err
	}
	r.log.Error("Record store failure", "op", op, "err", err)
	return &PersistenceError{Op: op, Err: err}
}

func outcomeOf(row *Row, confidence Confidence) *Outcome {
	return &Outcome{
		RowID:      row.ID,
		TokenID:    row.TokenID,
		TxHash:     row.TxHash,
		Status:     row.Status,
		Confidence: confidence,
	}
}

// orNone dereferences optional row fields for logging.
func orNone[T any](v *T) interface{} {
	if v == nil {
		return "none"
	}
	return *v
}
