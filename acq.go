// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq provides a data-acquisition and multi-instrument
// synchronization engine: timed sampling sessions with per-channel ring
// buffers, trigger gating, rolling and spectral statistics, cross-device
// time alignment and live streaming to remote observers.
//
// The engine never performs instrument I/O itself: samples and their
// originating channel are handed to it through Session.Ingest (or the
// Engine ingestion boundary) by the caller.
package acq // import "github.com/go-daq/acq"

import (
	"fmt"
	"time"
)

// Sample is one measurement on a channel: a monotonic timestamp in
// seconds and a value. Samples are immutable once ingested.
type Sample struct {
	Time  float64 `json:"t"` // monotonic timestamp, in seconds
	Value float64 `json:"v"`
}

// Mode selects how an acquisition session starts and ends.
type Mode uint8

const (
	Continuous Mode = iota // acquires until explicitly stopped
	SingleShot             // stops after a requested sample count
	Triggered              // waits for a trigger condition before acquiring
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case SingleShot:
		return "single-shot"
	case Triggered:
		return "triggered"
	default:
		panic(fmt.Errorf("invalid mode value %d", uint8(m)))
	}
}

var epoch = time.Now()

// Now returns the engine monotonic time in seconds. In-process sample
// sources and the streaming latency estimate share this clock; external
// callers may ingest timestamps from any monotonic clock of their own.
func Now() float64 {
	return time.Since(epoch).Seconds()
}
