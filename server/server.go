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

// Package server exposes mint reconciliation and the favorites records over
// HTTP: a REST surface for the frame client and a JSON-RPC endpoint at /rpc.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jc4p/llm-rater-frame/mint"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Server is the HTTP server of the favorites daemon.
type Server struct {
	store      mint.RecordStore
	reconciler *mint.Reconciler
	catalog    *mint.Catalog
	rpc        *rpc.Server
	corsOrigin string
	mux        *http.ServeMux
	log        log.Logger
}

// New creates a server and registers the mint JSON-RPC namespace.  An empty
// corsOrigin allows any origin.
func New(store mint.RecordStore, reconciler *mint.Reconciler, catalog *mint.Catalog, corsOrigin string) (*Server, error) {
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	s := &Server{
		store:      store,
		reconciler: reconciler,
		catalog:    catalog,
		rpc:        rpc.NewServer(),
		corsOrigin: corsOrigin,
		mux:        http.NewServeMux(),
		log:        log.New("module", "http"),
	}
	if err := s.rpc.RegisterName("mint", mint.NewAPI(reconciler)); err != nil {
		return nil, err
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.health)

	s.mux.HandleFunc("POST /api/update-token", s.updateToken)
	s.mux.HandleFunc("GET /api/debug-tx", s.debugTx)
	s.mux.HandleFunc("POST /api/save-favorite", s.saveFavorite)
	s.mux.HandleFunc("GET /api/check-favorite", s.checkFavorite)
	s.mux.HandleFunc("POST /api/nft-image", s.nftImage)
	s.mux.HandleFunc("GET /api/tokens/{tokenId}", s.tokenMetadata)

	s.mux.Handle("/rpc", s.rpc)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.corsMiddleware(s.mux))
}

// Stop shuts down the JSON-RPC server.  In-flight HTTP requests are the
// http.Server's business.
func (s *Server) Stop() {
	s.rpc.Stop()
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("Served request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Debug("Failed to write response", "err", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// failure maps a domain error onto its HTTP status.  Internal failures keep
// the cause in the details field.
func (s *Server) failure(w http.ResponseWriter, message string, err error) {
	switch mint.Kind(err) {
	case "validation":
		s.jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case "not_found":
		s.jsonResponse(w, http.StatusNotFound, ErrorResponse{Error: "Row not found", Details: err.Error()})
	case "conflict":
		s.jsonResponse(w, http.StatusConflict, ErrorResponse{Error: message, Details: err.Error()})
	default:
		s.log.Error(message, "err", err)
		s.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: message, Details: err.Error()})
	}
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &mint.ValidationError{Field: "body", Reason: "request body too large"}
		}
		return &mint.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}
