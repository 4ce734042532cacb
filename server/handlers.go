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

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jc4p/llm-rater-frame/mint"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// updateToken records a mint for a row, either from a token id the client
// already knows or by reconciling the transaction hash.
func (s *Server) updateToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateTokenRequest
	if err := decode(w, r, &req); err != nil {
		s.failure(w, "Failed to update token", err)
		return
	}
	out, err := s.reconciler.Reconcile(r.Context(), mint.Request{
		RowID:   req.RowID,
		TxHash:  req.TxHash,
		TokenID: req.TokenID,
	})
	if err != nil {
		s.failure(w, "Failed to update token", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, mint.NewSubmitResult(out))
}

func (s *Server) debugTx(w http.ResponseWriter, r *http.Request) {
	txHash := r.URL.Query().Get("txHash")
	if txHash == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing required parameter: txHash")
		return
	}
	res, err := s.reconciler.Recheck(r.Context(), txHash)
	if err != nil {
		s.failure(w, "Failed to inspect transaction", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, DebugTxResponse{Success: res.Found, RecheckResult: res})
}

func (s *Server) saveFavorite(w http.ResponseWriter, r *http.Request) {
	var req SaveFavoriteRequest
	if err := decode(w, r, &req); err != nil {
		s.failure(w, "Failed to save favorite", err)
		return
	}
	if req.FID <= 0 || req.FavoriteLLM == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing required fields: fid and favorite_llm")
		return
	}
	if !mint.IsValidLLM(req.FavoriteLLM) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid favorite_llm. Must be one of: "+strings.Join(mint.ValidLLMs, ", "))
		return
	}
	row, err := s.store.Create(r.Context(), req.FID, req.FavoriteLLM)
	if err != nil {
		s.failure(w, "Failed to save favorite", err)
		return
	}
	s.log.Info("Favorite saved", "row", row.ID, "fid", row.FID, "llm", row.FavoriteLLM)
	s.jsonResponse(w, http.StatusOK, SaveFavoriteResponse{Success: true, RowID: row.ID})
}

func (s *Server) checkFavorite(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("fid")
	if raw == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing required parameter: fid")
		return
	}
	fid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fid <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "Invalid fid")
		return
	}
	row, err := s.store.Latest(r.Context(), fid)
	switch {
	case errors.Is(err, mint.ErrRowNotFound):
		s.jsonResponse(w, http.StatusOK, CheckFavoriteResponse{})
	case err != nil:
		s.failure(w, "Failed to check favorite status", err)
	default:
		s.jsonResponse(w, http.StatusOK, CheckFavoriteResponse{HasFavorite: true, Favorite: row})
	}
}

func (s *Server) nftImage(w http.ResponseWriter, r *http.Request) {
	var req NFTImageRequest
	if err := decode(w, r, &req); err != nil {
		s.failure(w, "Failed to record image", err)
		return
	}
	if req.RowID <= 0 || req.ImageURL == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing required parameters: rowId and imageUrl")
		return
	}
	if u, err := url.Parse(req.ImageURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		s.errorResponse(w, http.StatusBadRequest, "Invalid imageUrl")
		return
	}
	row, err := s.store.SetImageURL(r.Context(), req.RowID, req.ImageURL)
	if err != nil {
		s.failure(w, "Failed to record image", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, NFTImageResponse{ImageURL: *row.ImageURL})
}

func (s *Server) tokenMetadata(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(r.PathValue("tokenId"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid token ID")
		return
	}
	meta, err := s.catalog.Metadata(r.Context(), tokenID)
	if errors.Is(err, mint.ErrRowNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Token not found")
		return
	}
	if err != nil {
		s.failure(w, "Failed to fetch token metadata", err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	s.jsonResponse(w, http.StatusOK, meta)
}
