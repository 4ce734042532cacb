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
	"errors"
	"fmt"
)

// Errors returned by reconciliation and the record store.
var (
	ErrRowNotFound    = errors.New("mint: row not found")
	ErrTokenConflict  = errors.New("mint: row already resolved to a different token id")
	ErrTokenTaken     = errors.New("mint: token id already belongs to another row")
	ErrTxHashConflict = errors.New("mint: row already carries a different transaction hash")
)

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mint: invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed RPC round trip.  A well-formed "not found"
// answer is not a transport error.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mint: rpc %s failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed record store write.  It is fatal to the
// reconciliation call; the caller should retry the whole request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("mint: store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
