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

// Package pgstore implements the mint record store on PostgreSQL, on the
// user_favorite_llm table shared with the rest of the application.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jc4p/llm-rater-frame/mint"
)

// uniqueViolation is the SQLSTATE of a unique index violation.
const uniqueViolation = "23505"

// Store is a PostgreSQL backed mint.RecordStore.
type Store struct {
	pool *pgxpool.Pool

	// schemaReady is set once the schema has been applied through this
	// store value.
	schemaReady atomic.Bool
	log         log.Logger
}

// New connects to dsn and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	s := NewWithPool(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool.  The schema is not touched.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, log: log.New("module", "pgstore")}
}

// EnsureSchema creates or upgrades the favorites table.  Repeated calls on the
// same store are free.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.schemaReady.Load() {
		return nil
	}
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: apply schema: %w", err)
	}
	if s.schemaReady.CompareAndSwap(false, true) {
		s.log.Info("Favorites schema ready")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) Create(ctx context.Context, fid int64, favoriteLLM string) (*mint.Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `
INSERT INTO user_favorite_llm (fid, favorite_llm)
VALUES ($1, $2)
RETURNING `+rowColumns, fid, favoriteLLM))
}

func (s *Store) Get(ctx context.Context, rowID int64) (*mint.Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `SELECT `+rowColumns+` FROM user_favorite_llm WHERE id = $1`, rowID))
}

func (s *Store) Latest(ctx context.Context, fid int64) (*mint.Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `
SELECT `+rowColumns+`
FROM user_favorite_llm
WHERE fid = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`, fid))
}

func (s *Store) GetByToken(ctx context.Context, tokenID uint64) (*mint.Row, error) {
	id, err := toBigint(tokenID)
	if err != nil {
		return nil, mint.ErrRowNotFound
	}
	return scanRow(s.pool.QueryRow(ctx, `SELECT `+rowColumns+` FROM user_favorite_llm WHERE token_id = $1`, id))
}

func (s *Store) FindByTxHash(ctx context.Context, txHash string) (*mint.Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `
SELECT `+rowColumns+`
FROM user_favorite_llm
WHERE lower(tx) = lower($1)
ORDER BY id
LIMIT 1`, txHash))
}

func (s *Store) Update(ctx context.Context, rowID int64, patch mint.Patch) (*mint.Row, error) {
	var (
		tokenID *int64
		status  *string
	)
	if patch.TokenID != nil {
		id, err := toBigint(*patch.TokenID)
		if err != nil {
			return nil, err
		}
		tokenID = &id
	}
	if patch.Status != nil {
		st := patch.Status.String()
		status = &st
	}
	row, err := scanRow(s.pool.QueryRow(ctx, updateRow, rowID, patch.TxHash, tokenID, status))
	if err == nil {
		return row, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, mint.ErrTokenTaken
	}
	if !errors.Is(err, mint.ErrRowNotFound) {
		return nil, err
	}
	return nil, s.classifyRefusal(ctx, rowID, patch)
}

// classifyRefusal explains why the conditional update matched no row.
func (s *Store) classifyRefusal(ctx context.Context, rowID int64, patch mint.Patch) error {
	row, err := s.Get(ctx, rowID)
	if err != nil {
		return err
	}
	if patch.TxHash != nil && row.TxHash != nil && !strings.EqualFold(*row.TxHash, *patch.TxHash) {
		return mint.ErrTxHashConflict
	}
	if patch.TokenID != nil && row.TokenID != nil && *row.TokenID != *patch.TokenID {
		return mint.ErrTokenConflict
	}
	// The row changed between the update and this read; let the caller retry.
	return fmt.Errorf("pgstore: update of row %d raced with another writer", rowID)
}

func (s *Store) SetImageURL(ctx context.Context, rowID int64, url string) (*mint.Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `
UPDATE user_favorite_llm
SET image_url = $1
WHERE id = $2
RETURNING `+rowColumns, url, rowID))
}

func scanRow(r pgx.Row) (*mint.Row, error) {
	var (
		row     mint.Row
		tokenID *int64
		status  string
	)
	err := r.Scan(&row.ID, &row.FID, &row.FavoriteLLM, &tokenID, &row.TxHash, &row.ImageURL, &status, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mint.ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	if tokenID != nil {
		id := uint64(*tokenID)
		row.TokenID = &id
	}
	if row.Status, err = mint.ParseStatus(status); err != nil {
		return nil, err
	}
	row.CreatedAt = row.CreatedAt.In(time.UTC)
	return &row, nil
}

func toBigint(id uint64) (int64, error) {
	if id > mint.MaxTokenID {
		return 0, &mint.ValidationError{Field: "tokenId", Reason: "exceeds the bigint range"}
	}
	return int64(id), nil
}
