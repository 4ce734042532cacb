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

package server

import "github.com/jc4p/llm-rater-frame/mint"

// ErrorResponse is the response for error cases.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// UpdateTokenRequest reports a mint for a favorite row.
type UpdateTokenRequest struct {
	RowID   int64   `json:"rowId"`
	TxHash  string  `json:"txHash"`
	TokenID *uint64 `json:"tokenId"`
}

// DebugTxResponse is the response of a transaction re-check.
type DebugTxResponse struct {
	Success bool `json:"success"`
	*mint.RecheckResult
}

// SaveFavoriteRequest records a new favorite.
type SaveFavoriteRequest struct {
	FID         int64  `json:"fid"`
	FavoriteLLM string `json:"favorite_llm"`
}

// SaveFavoriteResponse is the response for a saved favorite.
type SaveFavoriteResponse struct {
	Success bool  `json:"success"`
	RowID   int64 `json:"rowId"`
}

// CheckFavoriteResponse is the newest favorite of a user, if any.
type CheckFavoriteResponse struct {
	HasFavorite bool      `json:"hasFavorite"`
	Favorite    *mint.Row `json:"favorite"`
}

// NFTImageRequest records the rendered image of a row.
type NFTImageRequest struct {
	RowID    int64  `json:"rowId"`
	ImageURL string `json:"imageUrl"`
}

// NFTImageResponse is the response for a recorded image.
type NFTImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

