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

// Package storetest holds the behaviour every mint.RecordStore must show.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "0xabc0000000000000000000000000000000000000000000000000000000000001"
	hashB = "0xabc0000000000000000000000000000000000000000000000000000000000002"
)

func ptr[T any](v T) *T { return &v }

// TestRecordStore runs the record store suite against stores made by New.
// Each subtest gets a fresh store.
func TestRecordStore(t *testing.T, New func(t *testing.T) mint.RecordStore) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 42, "claude-3.5")
		require.NoError(t, err)
		assert.Equal(t, int64(42), row.FID)
		assert.Equal(t, mint.StatusUnsubmitted, row.Status)
		assert.Nil(t, row.TxHash)
		assert.Nil(t, row.TokenID)

		got, err := db.Get(ctx, row.ID)
		require.NoError(t, err)
		assert.Equal(t, row.ID, got.ID)
		assert.Equal(t, "claude-3.5", got.FavoriteLLM)

		_, err = db.Get(ctx, row.ID+1000)
		assert.ErrorIs(t, err, mint.ErrRowNotFound)
	})

	t.Run("Latest", func(t *testing.T) {
		db := New(t)
		_, err := db.Create(ctx, 7, "claude-3.5")
		require.NoError(t, err)
		second, err := db.Create(ctx, 7, "gpt-4.5")
		require.NoError(t, err)

		latest, err := db.Latest(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		_, err = db.Latest(ctx, 8)
		assert.ErrorIs(t, err, mint.ErrRowNotFound)
	})

	t.Run("PartialUpdates", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 1, "gemini-2.0")
		require.NoError(t, err)

		row, err = db.Update(ctx, row.ID, mint.Patch{TxHash: ptr(hashA), Status: ptr(mint.StatusSubmitted)})
		require.NoError(t, err)
		assert.Equal(t, hashA, *row.TxHash)
		assert.Nil(t, row.TokenID)
		assert.Equal(t, mint.StatusSubmitted, row.Status)

		row, err = db.Update(ctx, row.ID, mint.Patch{Status: ptr(mint.StatusPending)})
		require.NoError(t, err)
		assert.Equal(t, hashA, *row.TxHash)
		assert.Equal(t, mint.StatusPending, row.Status)

		row, err = db.Update(ctx, row.ID, mint.Patch{TokenID: ptr(uint64(9)), Status: ptr(mint.StatusPending)})
		require.NoError(t, err)
		assert.Equal(t, uint64(9), *row.TokenID)
		assert.Equal(t, mint.StatusConfirmed, row.Status, "a row with a token id is confirmed")

		byToken, err := db.GetByToken(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, row.ID, byToken.ID)

		byTx, err := db.FindByTxHash(ctx, hashA)
		require.NoError(t, err)
		assert.Equal(t, row.ID, byTx.ID)

		_, err = db.Update(ctx, row.ID+1000, mint.Patch{Status: ptr(mint.StatusPending)})
		assert.ErrorIs(t, err, mint.ErrRowNotFound)
	})

	t.Run("Convergence", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 1, "gpt-4.5")
		require.NoError(t, err)

		_, err = db.Update(ctx, row.ID, mint.Patch{TxHash: ptr(hashA), TokenID: ptr(uint64(3))})
		require.NoError(t, err)

		// Repeating stored values is a no-op.
		again, err := db.Update(ctx, row.ID, mint.Patch{TxHash: ptr(hashA), TokenID: ptr(uint64(3))})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), *again.TokenID)

		_, err = db.Update(ctx, row.ID, mint.Patch{TokenID: ptr(uint64(4))})
		assert.ErrorIs(t, err, mint.ErrTokenConflict)

		_, err = db.Update(ctx, row.ID, mint.Patch{TxHash: ptr(hashB)})
		assert.ErrorIs(t, err, mint.ErrTxHashConflict)

		got, err := db.Get(ctx, row.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), *got.TokenID)
		assert.Equal(t, hashA, *got.TxHash)
	})

	t.Run("TokenUniqueness", func(t *testing.T) {
		db := New(t)
		first, err := db.Create(ctx, 1, "gpt-4.5")
		require.NoError(t, err)
		second, err := db.Create(ctx, 2, "gpt-4.5")
		require.NoError(t, err)

		_, err = db.Update(ctx, first.ID, mint.Patch{TokenID: ptr(uint64(11))})
		require.NoError(t, err)
		_, err = db.Update(ctx, second.ID, mint.Patch{TokenID: ptr(uint64(11))})
		assert.ErrorIs(t, err, mint.ErrTokenTaken)

		got, err := db.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Nil(t, got.TokenID)
	})

	t.Run("TokenRange", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 3, "claude-3.5")
		require.NoError(t, err)

		_, err = db.Update(ctx, row.ID, mint.Patch{TokenID: ptr(uint64(mint.MaxTokenID) + 1), Status: ptr(mint.StatusConfirmed)})
		var verr *mint.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "tokenId", verr.Field)

		got, err := db.Get(ctx, row.ID)
		require.NoError(t, err)
		assert.Nil(t, got.TokenID)
		assert.Equal(t, mint.StatusUnsubmitted, got.Status)

		got, err = db.Update(ctx, row.ID, mint.Patch{TokenID: ptr(uint64(mint.MaxTokenID))})
		require.NoError(t, err)
		assert.Equal(t, uint64(mint.MaxTokenID), *got.TokenID)
	})

	t.Run("ConcurrentResolution", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 1, "claude-3.5")
		require.NoError(t, err)

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				_, err := db.Update(ctx, row.ID, mint.Patch{TokenID: ptr(id)})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else {
					losses++
				}
			}(uint64(100 + i))
		}
		wg.Wait()
		assert.Equal(t, 1, wins, "exactly one token id may win")
		assert.Equal(t, 7, losses)
	})

	t.Run("ImageURL", func(t *testing.T) {
		db := New(t)
		row, err := db.Create(ctx, 1, "claude-3.5")
		require.NoError(t, err)

		row, err = db.SetImageURL(ctx, row.ID, "https://images.example/nft.png")
		require.NoError(t, err)
		require.NotNil(t, row.ImageURL)
		assert.Equal(t, "https://images.example/nft.png", *row.ImageURL)

		_, err = db.SetImageURL(ctx, row.ID+1000, "x")
		assert.ErrorIs(t, err, mint.ErrRowNotFound)
	})
}
