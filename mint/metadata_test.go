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

package mint_test

import (
	"context"
	"testing"
	"time"

	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/jc4p/llm-rater-frame/store/memorydb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	db := memorydb.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	image := "https://images.example/row-8.png"
	db.Insert(mint.Row{ID: 8, FID: 1, FavoriteLLM: "gpt-4.5", TokenID: u64(3), ImageURL: &image, Status: mint.StatusConfirmed, CreatedAt: created})
	db.Insert(mint.Row{ID: 9, FID: 2, FavoriteLLM: "gemini-2.0", TokenID: u64(4), Status: mint.StatusConfirmed, CreatedAt: created})

	catalog := mint.NewCatalog(db, "", 0)

	meta, err := catalog.Metadata(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "AI Personality Mirror #3", meta.Name)
	assert.Equal(t, image, meta.Image)
	assert.Equal(t, mint.DefaultExternalURL+"/tokens/3", meta.ExternalURL)
	assert.Equal(t, mint.DefaultBackgroundColor, meta.BackgroundColor)
	require.Len(t, meta.Attributes, 2)
	assert.Equal(t, "gpt-4.5", meta.Attributes[0].Value)
	assert.Equal(t, created.Unix(), meta.Attributes[1].Value)
	assert.Equal(t, "date", meta.Attributes[1].DisplayType)

	meta, err = catalog.Metadata(context.Background(), 4)
	require.NoError(t, err)
	assert.Contains(t, meta.Image, "gemini-2.0")

	_, err = catalog.Metadata(context.Background(), 5)
	assert.ErrorIs(t, err, mint.ErrRowNotFound)
}

func TestMetadataTokenZero(t *testing.T) {
	db := memorydb.New()
	db.Insert(mint.Row{ID: 15, FID: 1, FavoriteLLM: "claude-3.5", CreatedAt: time.Now()})

	_, err := mint.NewCatalog(db, "", 0).Metadata(context.Background(), 0)
	assert.ErrorIs(t, err, mint.ErrRowNotFound, "no stand-in without a configured row")

	catalog := mint.NewCatalog(db, "https://frames.example", 15)
	meta, err := catalog.Metadata(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "AI Personality Mirror #0", meta.Name)
	assert.Equal(t, "claude-3.5", meta.Attributes[0].Value)
	assert.Equal(t, "https://frames.example/tokens/0", meta.ExternalURL)

	_, err = catalog.Metadata(context.Background(), 1)
	assert.ErrorIs(t, err, mint.ErrRowNotFound, "only token 0 has a stand-in")

	// A real row for token 0 takes precedence.
	db.Insert(mint.Row{ID: 16, FID: 2, FavoriteLLM: "gpt-4.5", TokenID: u64(0), Status: mint.StatusConfirmed, CreatedAt: time.Now()})
	meta, err = catalog.Metadata(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.5", meta.Attributes[0].Value)
}
