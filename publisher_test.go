// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"context"
	"testing"
	"time"
)

func TestSubConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  SubConfig
		ok   bool
	}{
		{name: "defaults", cfg: SubConfig{}, ok: true},
		{name: "explicit", cfg: SubConfig{Interval: 10 * time.Millisecond, Max: 100}, ok: true},
		{name: "interval-too-small", cfg: SubConfig{Interval: 100 * time.Microsecond}, ok: false},
		{name: "interval-too-large", cfg: SubConfig{Interval: time.Minute}, ok: false},
		{name: "batch-too-large", cfg: SubConfig{Max: MaxBatch + 1}, ok: false},
		{name: "batch-negative", cfg: SubConfig{Max: -1}, ok: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.norm()
			if (err == nil) != tc.ok {
				t.Fatalf("got err=%v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestPublisher(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 1000, Channels: []string{"ch0"}})
	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	for i := 0; i < 100; i++ {
		if err := s.Ingest("ch0", Now(), float64(i)); err != nil {
			t.Fatalf("could not ingest: %+v", err)
		}
	}

	pub := NewPublisher(s, nil)
	defer pub.Close()

	obs := NewChanObserver(8)
	id, err := pub.Subscribe(SubConfig{Interval: 10 * time.Millisecond, Max: 50}, obs)
	if err != nil {
		t.Fatalf("could not subscribe: %+v", err)
	}

	var batch Batch
	select {
	case batch = <-obs.C:
	case <-time.After(2 * time.Second):
		t.Fatalf("no batch published")
	}

	if got, want := batch.ID, s.ID(); got != want {
		t.Fatalf("batch id: got=%q, want=%q", got, want)
	}
	if got, want := batch.State, "running"; got != want {
		t.Fatalf("batch state: got=%q, want=%q", got, want)
	}
	if got, want := batch.Data.Count, 50; got != want {
		t.Fatalf("batch count: got=%d, want=%d", got, want)
	}
	if got, want := len(batch.Data.Values["ch0"]), 50; got != want {
		t.Fatalf("batch values: got=%d, want=%d", got, want)
	}
	if got, want := batch.Quality.Total, uint64(100); got != want {
		t.Fatalf("batch total: got=%d, want=%d", got, want)
	}
	if batch.Quality.LatencyMS < 0 {
		t.Fatalf("negative latency: %v", batch.Quality.LatencyMS)
	}
	sum, ok := batch.Stats["ch0"]
	if !ok {
		t.Fatalf("no per-channel stats")
	}
	if sum.N != 50 {
		t.Fatalf("stats n: got=%d, want=50", sum.N)
	}

	if err := pub.Unsubscribe(id); err != nil {
		t.Fatalf("could not unsubscribe: %+v", err)
	}
	if err := pub.Unsubscribe(id); err == nil {
		t.Fatalf("double unsubscribe: expected an error")
	}
}

func TestPublisherSlowObserver(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 1000, Channels: []string{"ch0"}})
	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if err := s.Ingest("ch0", Now(), 1); err != nil {
		t.Fatalf("could not ingest: %+v", err)
	}

	pub := NewPublisher(s, nil)

	// an observer that never returns before its deadline: the publisher
	// must keep dropping batches without blocking Close.
	stuck := ObserverFunc(func(ctx context.Context, b Batch) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if _, err := pub.Subscribe(SubConfig{Interval: MinInterval}, stuck); err != nil {
		t.Fatalf("could not subscribe: %+v", err)
	}

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = pub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close blocked on a slow observer")
	}

	if _, err := pub.Subscribe(SubConfig{}, NewChanObserver(1)); err == nil {
		t.Fatalf("subscribe after close: expected an error")
	}
}
