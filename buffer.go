// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"sync"
)

// Buffer capacity bounds.
const (
	MinBufferCap     = 100
	MaxBufferCap     = 10000000
	DefaultBufferCap = 8192
)

// Buffer is a fixed-capacity ring of samples for one channel, evicting
// oldest-first when full. Appends are serialized by the owning session;
// snapshots may be taken concurrently and always observe a consistent
// copy, never a torn one.
type Buffer struct {
	mu    sync.RWMutex
	buf   []Sample
	head  int    // index of the oldest sample
	n     int    // current length
	total uint64 // total samples ever inserted, survives eviction and Clear
}

// NewBuffer creates a ring buffer with the given capacity.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < MinBufferCap || capacity > MaxBufferCap {
		return nil, cfgErr("buffer capacity", "%d not in [%d, %d]", capacity, MinBufferCap, MaxBufferCap)
	}
	return &Buffer{buf: make([]Sample, capacity)}, nil
}

// Append inserts s, evicting the oldest sample when the buffer is full.
func (b *Buffer) Append(s Sample) {
	b.mu.Lock()
	switch {
	case b.n < len(b.buf):
		b.buf[(b.head+b.n)%len(b.buf)] = s
		b.n++
	default:
		b.buf[b.head] = s
		b.head = (b.head + 1) % len(b.buf)
	}
	b.total++
	b.mu.Unlock()
}

// Snapshot returns a copy of the buffer content, oldest first.
func (b *Buffer) Snapshot() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copyLast(b.n)
}

// Latest returns a copy of the last n samples, oldest first. When fewer
// than n samples are buffered, all of them are returned.
func (b *Buffer) Latest(n int) []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.n {
		n = b.n
	}
	if n < 0 {
		n = 0
	}
	return b.copyLast(n)
}

// copyLast copies the last n buffered samples. Callers hold b.mu.
func (b *Buffer) copyLast(n int) []Sample {
	out := make([]Sample, n)
	beg := b.head + b.n - n
	for i := 0; i < n; i++ {
		out[i] = b.buf[(beg+i)%len(b.buf)]
	}
	return out
}

// Clear drops all buffered samples. The total-inserted counter is
// monotonic and survives.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.head = 0
	b.n = 0
	b.mu.Unlock()
}

// Len returns the number of currently buffered samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	n := b.n
	b.mu.RUnlock()
	return n
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Total returns the total number of samples ever inserted.
func (b *Buffer) Total() uint64 {
	b.mu.RLock()
	total := b.total
	b.mu.RUnlock()
	return total
}
