// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"context"

	"github.com/go-daq/acq/stats"
)

// BatchData carries the newest samples of each channel.
type BatchData struct {
	Times  []float64            `json:"timestamps"`
	Values map[string][]float64 `json:"values"`
	Count  int                  `json:"count"`
}

// BatchQuality is per-batch pipeline telemetry.
type BatchQuality struct {
	RateHz    float64 `json:"rate_hz"`       // effective ingest rate over the last interval
	LatencyMS float64 `json:"latency_ms"`    // age of the newest sample at publish time
	Total     uint64  `json:"total_samples"` // samples buffered since the last reset
}

// Batch is one published update of a session.
type Batch struct {
	ID      string                   `json:"id"`
	State   string                   `json:"state"`
	Stats   map[string]stats.Summary `json:"stats"`
	Data    BatchData                `json:"data"`
	Quality BatchQuality             `json:"quality"`
}

// Observer consumes published batches. Send blocks at most until the
// context is done; the publisher treats a slow observer as lossy and
// drops batches rather than stalling acquisition.
type Observer interface {
	Send(ctx context.Context, b Batch) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, b Batch) error

func (f ObserverFunc) Send(ctx context.Context, b Batch) error { return f(ctx, b) }

// ChanObserver forwards batches on a channel, dropping when full.
type ChanObserver struct {
	C chan Batch
}

// NewChanObserver creates a channel observer with the given buffering.
func NewChanObserver(n int) *ChanObserver {
	return &ChanObserver{C: make(chan Batch, n)}
}

func (o *ChanObserver) Send(_ context.Context, b Batch) error {
	select {
	case o.C <- b:
	default:
	}
	return nil
}
