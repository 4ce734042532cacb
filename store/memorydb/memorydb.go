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

// Package memorydb implements the mint record store in process memory.  It
// backs tests and the --dev mode of the daemon; nothing survives a restart.
package memorydb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jc4p/llm-rater-frame/mint"
)

// Database is an in-memory mint.RecordStore.
type Database struct {
	lock   sync.RWMutex
	rows   map[int64]*mint.Row
	tokens map[uint64]int64 // token id -> row id
	nextID int64
}

// New returns an empty database.
func New() *Database {
	return &Database{
		rows:   make(map[int64]*mint.Row),
		tokens: make(map[uint64]int64),
		nextID: 1,
	}
}

// Create inserts a new unsubmitted row.
func (db *Database) Create(ctx context.Context, fid int64, favoriteLLM string) (*mint.Row, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	row := &mint.Row{
		ID:          db.nextID,
		FID:         fid,
		FavoriteLLM: favoriteLLM,
		Status:      mint.StatusUnsubmitted,
		CreatedAt:   time.Now().UTC(),
	}
	db.rows[row.ID] = row
	db.nextID++
	return copyRow(row), nil
}

// Insert stores a fully formed row, keeping its id.  It is meant for seeding
// fixtures.
func (db *Database) Insert(row mint.Row) {
	db.lock.Lock()
	defer db.lock.Unlock()

	r := copyRow(&row)
	db.rows[r.ID] = r
	if r.TokenID != nil {
		db.tokens[*r.TokenID] = r.ID
	}
	if r.ID >= db.nextID {
		db.nextID = r.ID + 1
	}
}

func (db *Database) Get(ctx context.Context, rowID int64) (*mint.Row, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	row, ok := db.rows[rowID]
	if !ok {
		return nil, mint.ErrRowNotFound
	}
	return copyRow(row), nil
}

func (db *Database) Latest(ctx context.Context, fid int64) (*mint.Row, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var latest *mint.Row
	for _, row := range db.rows {
		if row.FID != fid {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) ||
			(row.CreatedAt.Equal(latest.CreatedAt) && row.ID > latest.ID) {
			latest = row
		}
	}
	if latest == nil {
		return nil, mint.ErrRowNotFound
	}
	return copyRow(latest), nil
}

func (db *Database) GetByToken(ctx context.Context, tokenID uint64) (*mint.Row, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	id, ok := db.tokens[tokenID]
	if !ok {
		return nil, mint.ErrRowNotFound
	}
	return copyRow(db.rows[id]), nil
}

func (db *Database) FindByTxHash(ctx context.Context, txHash string) (*mint.Row, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var found *mint.Row
	for _, row := range db.rows {
		if row.TxHash != nil && strings.EqualFold(*row.TxHash, txHash) {
			if found == nil || row.ID < found.ID {
				found = row
			}
		}
	}
	if found == nil {
		return nil, mint.ErrRowNotFound
	}
	return copyRow(found), nil
}

func (db *Database) Update(ctx context.Context, rowID int64, patch mint.Patch) (*mint.Row, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	row, ok := db.rows[rowID]
	if !ok {
		return nil, mint.ErrRowNotFound
	}
	if patch.TxHash != nil && row.TxHash != nil && !strings.EqualFold(*row.TxHash, *patch.TxHash) {
		return nil, mint.ErrTxHashConflict
	}
	if patch.TokenID != nil {
		if *patch.TokenID > mint.MaxTokenID {
			return nil, &mint.ValidationError{Field: "tokenId", Reason: "exceeds the storable range"}
		}
		if row.TokenID != nil && *row.TokenID != *patch.TokenID {
			return nil, mint.ErrTokenConflict
		}
		if owner, ok := db.tokens[*patch.TokenID]; ok && owner != rowID {
			return nil, mint.ErrTokenTaken
		}
	}

	if patch.TxHash != nil && row.TxHash == nil {
		tx := strings.ToLower(*patch.TxHash)
		row.TxHash = &tx
	}
	if patch.TokenID != nil && row.TokenID == nil {
		id := *patch.TokenID
		row.TokenID = &id
		db.tokens[id] = rowID
	}
	switch {
	case row.TokenID != nil:
		row.Status = mint.StatusConfirmed
	case patch.Status != nil:
		row.Status = *patch.Status
	}
	return copyRow(row), nil
}

func (db *Database) SetImageURL(ctx context.Context, rowID int64, url string) (*mint.Row, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	row, ok := db.rows[rowID]
	if !ok {
		return nil, mint.ErrRowNotFound
	}
	row.ImageURL = &url
	return copyRow(row), nil
}

// Len returns the number of stored rows.
func (db *Database) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.rows)
}

func copyRow(row *mint.Row) *mint.Row {
	cpy := *row
	if row.TxHash != nil {
		tx := *row.TxHash
		cpy.TxHash = &tx
	}
	if row.TokenID != nil {
		id := *row.TokenID
		cpy.TokenID = &id
	}
	if row.ImageURL != nil {
		url := *row.ImageURL
		cpy.ImageURL = &url
	}
	return &cpy
}
