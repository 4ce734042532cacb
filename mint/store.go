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
)

// RecordStore persists favorite rows and their mint attempts.
//
// Update applies a partial patch atomically and must converge under concurrent
// callers: a transaction hash or token id is written only while the column is
// empty, repeating the stored value is a no-op, and a different value fails
// with ErrTxHashConflict or ErrTokenConflict without writing anything.  A
// token id held by another row fails with ErrTokenTaken.  A row carrying a
// token id always reads back as StatusConfirmed.
type RecordStore interface {
	// Create inserts a new favorite row and returns it.
	Create(ctx context.Context, fid int64, favoriteLLM string) (*Row, error)

	// Get returns the row with the given id or ErrRowNotFound.
	Get(ctx context.Context, rowID int64) (*Row, error)

	// Latest returns the newest row of a user or ErrRowNotFound.
	Latest(ctx context.Context, fid int64) (*Row, error)

	// GetByToken returns the row resolved to tokenID or ErrRowNotFound.
	GetByToken(ctx context.Context, tokenID uint64) (*Row, error)

	// FindByTxHash returns the row carrying txHash or ErrRowNotFound.
	FindByTxHash(ctx context.Context, txHash string) (*Row, error)

	// Update applies patch to the row and returns the stored result.
	Update(ctx context.Context, rowID int64, patch Patch) (*Row, error)

	// SetImageURL records the rendered image of a row.
	SetImageURL(ctx context.Context, rowID int64, url string) (*Row, error)
}
