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
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// Receipt polling defaults.  Confirmations on Base usually land within 2-10s;
// the default schedule waits roughly 2s, 3.2s, 5.1s and 8.2s between five
// attempts.
const (
	DefaultPollAttempts    = 5
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMultiplier  = 1.6
	DefaultPollMaxInterval = 10 * time.Second
)

// PollAttempt records a single receipt lookup made by the poller.
type PollAttempt struct {
	Attempt int    `json:"attempt"`
	WaitMs  int64  `json:"waitMs"`
	Found   bool   `json:"found"`
	Error   string `json:"error,omitempty"`
}

// ExponentialBackOff returns a factory of jitter-free exponential schedules
// starting at initial and growing by factor up to maxInterval.
func ExponentialBackOff(initial time.Duration, factor float64, maxInterval time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := &backoff.ExponentialBackOff{
			InitialInterval:     initial,
			RandomizationFactor: 0,
			Multiplier:          factor,
			MaxInterval:         maxInterval,
		}
		b.Reset()
		return b
	}
}

// Poller fetches transaction receipts, retrying with backoff until the receipt
// shows up or the attempt budget is spent.  A Poller holds no per-call state
// and may be shared by concurrent reconciliations.
type Poller struct {
	gateway    Gateway
	attempts   int
	newBackOff func() backoff.BackOff
	log        log.Logger
}

// NewPoller creates a poller making at most attempts lookups.  newBackOff is
// invoked once per poll to obtain the wait schedule; nil selects the default
// exponential schedule.
func NewPoller(gateway Gateway, attempts int, newBackOff func() backoff.BackOff) *Poller {
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	if newBackOff == nil {
		newBackOff = ExponentialBackOff(DefaultPollInterval, DefaultPollMultiplier, DefaultPollMaxInterval)
	}
	return &Poller{
		gateway:    gateway,
		attempts:   attempts,
		newBackOff: newBackOff,
		log:        log.New("module", "poller"),
	}
}

// Poll returns the receipt of hash, or nil if it did not appear within the
// attempt budget.  Running out of attempts is not an error; the error is
// non-nil only when the context ends or every attempt failed in transport.
func (p *Poller) Poll(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, _, err := p.Trace(ctx, hash)
	return receipt, err
}

// Trace is Poll that also reports every attempt it made.
func (p *Poller) Trace(ctx context.Context, hash common.Hash) (*types.Receipt, []PollAttempt, error) {
	var (
		schedule = p.newBackOff()
		trace    = make([]PollAttempt, 0, p.attempts)
		failures int
		lastErr  error
	)
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var wait time.Duration
		if attempt > 1 {
			if wait = schedule.NextBackOff(); wait == backoff.Stop {
				break
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, trace, err
			}
		}
		receipt, err := p.gateway.TransactionReceipt(ctx, hash)
		if err != nil && ctx.Err() != nil {
			return nil, trace, ctx.Err()
		}
		rec := PollAttempt{Attempt: attempt, WaitMs: wait.Milliseconds(), Found: receipt != nil}
		if err != nil {
			rec.Error = err.Error()
			failures++
			lastErr = err
			p.log.Debug("Receipt lookup failed", "tx", hash, "attempt", attempt, "err", err)
		}
		trace = append(trace, rec)

		if receipt != nil {
			p.log.Debug("Receipt found", "tx", hash, "attempt", attempt, "block", receipt.BlockNumber)
			return receipt, trace, nil
		}
	}
	if failures > 0 && failures == len(trace) {
		return nil, trace, lastErr
	}
	p.log.Debug("Receipt not found within budget", "tx", hash, "attempts", len(trace))
	return nil, trace, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
