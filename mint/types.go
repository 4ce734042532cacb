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

// Package mint reconciles user-submitted mint transactions of the favorite-LLM
// collection with their off-chain favorite rows.  It polls the chain for the
// transaction receipt, extracts the minted token id from the receipt logs and
// converges the row to a consistent state.  The package never originates a
// transaction; wallets do that and hand over the resulting hash.
package mint

import (
	"fmt"
	"math"
	"time"
)

// MaxTokenID is the largest token id a record store can hold.
const MaxTokenID = math.MaxInt64

// Status is the lifecycle position of a mint attempt.
type Status uint8

const (
	StatusUnsubmitted Status = iota // row exists, no transaction known
	StatusSubmitted                 // transaction hash recorded, not yet polled
	StatusPending                   // polled, token id not resolved yet
	StatusConfirmed                 // token id resolved
	StatusFailed                    // receipt reported an execution failure
)

// String returns the persisted name of the status.
func (s Status) String() string {
	switch s {
	case StatusUnsubmitted:
		return "unsubmitted"
	case StatusSubmitted:
		return "submitted"
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for st := StatusUnsubmitted; st <= StatusFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("mint: unknown status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Confidence tells how a token id was derived.
type Confidence string

const (
	// ConfidenceExact marks ids read from a mint event.
	ConfidenceExact Confidence = "exact"

	// ConfidenceHeuristic marks ids inferred from the collection supply.  Such
	// ids are a best-effort guess and do not guarantee row uniqueness.
	ConfidenceHeuristic Confidence = "heuristic"
)

// ValidLLMs lists the favorites a row may record.
var ValidLLMs = []string{"claude-3.5", "gemini-2.0", "gpt-4.5"}

// IsValidLLM reports whether name is an accepted favorite.
func IsValidLLM(name string) bool {
	for _, v := range ValidLLMs {
		if v == name {
			return true
		}
	}
	return false
}

// Row is one favorite selection together with its mint attempt.
type Row struct {
	ID          int64     `json:"id"`
	FID         int64     `json:"fid"`
	FavoriteLLM string    `json:"favorite_llm"`
	TxHash      *string   `json:"tx"`
	TokenID     *uint64   `json:"token_id"`
	ImageURL    *string   `json:"image_url"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Patch carries the fields of a partial row update.  Nil fields are left
// untouched by the store.
type Patch struct {
	TxHash  *string
	TokenID *uint64
	Status  *Status
}
