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
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollFindsLateReceipt(t *testing.T) {
	want := newReceipt(types.ReceiptStatusSuccessful, 100)
	gw := &fakeGateway{receipt: after(5, want)}

	receipt, trace, err := instantPoller(gw, 5).Trace(context.Background(), testHash)
	require.NoError(t, err)
	assert.Same(t, want, receipt)
	require.Len(t, trace, 5)
	for _, attempt := range trace[:4] {
		assert.False(t, attempt.Found)
	}
	assert.True(t, trace[4].Found)
	assert.Equal(t, 5, trace[4].Attempt)
}

func TestPollExhaustion(t *testing.T) {
	gw := &fakeGateway{}

	receipt, err := instantPoller(gw, 3).Poll(context.Background(), testHash)
	assert.NoError(t, err, "running out of attempts is not an error")
	assert.Nil(t, receipt)
	assert.Equal(t, 3, gw.Lookups())
}

func TestPollTransportErrors(t *testing.T) {
	boom := &mint.TransportError{Method: "eth_getTransactionReceipt", Err: errors.New("connection refused")}

	t.Run("every attempt failed", func(t *testing.T) {
		gw := &fakeGateway{receipt: func(int) (*types.Receipt, error) { return nil, boom }}
		receipt, trace, err := instantPoller(gw, 4).Trace(context.Background(), testHash)
		assert.Nil(t, receipt)
		var terr *mint.TransportError
		require.ErrorAs(t, err, &terr)
		require.Len(t, trace, 4)
		assert.Contains(t, trace[3].Error, "connection refused")
	})

	t.Run("some attempts answered", func(t *testing.T) {
		gw := &fakeGateway{receipt: func(call int) (*types.Receipt, error) {
			if call == 1 {
				return nil, boom
			}
			return nil, nil
		}}
		receipt, err := instantPoller(gw, 3).Poll(context.Background(), testHash)
		assert.NoError(t, err)
		assert.Nil(t, receipt)
	})

	t.Run("error then receipt", func(t *testing.T) {
		want := newReceipt(types.ReceiptStatusSuccessful, 1)
		gw := &fakeGateway{receipt: func(call int) (*types.Receipt, error) {
			if call < 3 {
				return nil, boom
			}
			return want, nil
		}}
		receipt, err := instantPoller(gw, 5).Poll(context.Background(), testHash)
		assert.NoError(t, err)
		assert.Same(t, want, receipt)
	})
}

func TestPollCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{receipt: func(int) (*types.Receipt, error) {
		cancel()
		return nil, nil
	}}
	poller := mint.NewPoller(gw, 5, func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) })

	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(ctx, testHash)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not observe cancellation")
	}
	assert.Equal(t, 1, gw.Lookups())
}

func TestPollStopsWhenScheduleEnds(t *testing.T) {
	gw := &fakeGateway{}
	poller := mint.NewPoller(gw, 10, func() backoff.BackOff { return &backoff.StopBackOff{} })

	receipt, trace, err := poller.Trace(context.Background(), testHash)
	assert.NoError(t, err)
	assert.Nil(t, receipt)
	assert.Len(t, trace, 1)
}

func TestDefaultSchedule(t *testing.T) {
	schedule := mint.ExponentialBackOff(mint.DefaultPollInterval, mint.DefaultPollMultiplier, mint.DefaultPollMaxInterval)()

	want := []time.Duration{
		2 * time.Second,
		3200 * time.Millisecond,
		5120 * time.Millisecond,
		8192 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		got := schedule.NextBackOff()
		assert.InDelta(t, float64(w), float64(got), float64(time.Millisecond), "wait %d", i)
	}
}
