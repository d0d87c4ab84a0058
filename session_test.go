// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"testing"
	"time"

	"golang.org/x/xerrors"

	"github.com/go-daq/acq/fsm"
	"github.com/go-daq/acq/trigger"
)

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	s, err := newSession("test-session", cfg)
	if err != nil {
		t.Fatalf("could not create session: %+v", err)
	}
	return s
}

func TestSessionConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  SessionConfig
		ok   bool
	}{
		{
			name: "valid-continuous",
			cfg:  SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}},
			ok:   true,
		},
		{
			name: "rate-too-low",
			cfg:  SessionConfig{Mode: Continuous, Rate: 0.0001, Channels: []string{"ch0"}},
			ok:   false,
		},
		{
			name: "rate-too-high",
			cfg:  SessionConfig{Mode: Continuous, Rate: 2e6, Channels: []string{"ch0"}},
			ok:   false,
		},
		{
			name: "no-channels",
			cfg:  SessionConfig{Mode: Continuous, Rate: 100},
			ok:   false,
		},
		{
			name: "duplicate-channel",
			cfg:  SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0", "ch0"}},
			ok:   false,
		},
		{
			name: "bufcap-too-small",
			cfg:  SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}, BufCap: 10},
			ok:   false,
		},
		{
			name: "trigger-source-not-a-channel",
			cfg: SessionConfig{
				Mode: Triggered, Rate: 100, Channels: []string{"ch0"},
				Trigger: trigger.Config{Kind: trigger.Level, Level: 1, Slope: trigger.Rising, Source: "ch1"},
			},
			ok: false,
		},
		{
			name: "valid-triggered",
			cfg: SessionConfig{
				Mode: Triggered, Rate: 100, Channels: []string{"ch0"},
				Trigger: trigger.Config{Kind: trigger.Level, Level: 1, Slope: trigger.Rising, Source: "ch0"},
			},
			ok: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newSession("s", tc.cfg)
			if (err == nil) != tc.ok {
				t.Fatalf("got err=%v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestSessionDefaults(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: SingleShot, Rate: 100, Channels: []string{"ch0"}})
	cfg := s.Config()
	if got, want := cfg.BufCap, DefaultBufferCap; got != want {
		t.Fatalf("bufcap: got=%d, want=%d", got, want)
	}
	if got, want := cfg.Count, DefaultBufferCap; got != want {
		t.Fatalf("count: got=%d, want=%d", got, want)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}})

	if got, want := s.State(), fsm.Idle; got != want {
		t.Fatalf("initial state: got=%v, want=%v", got, want)
	}

	// pausing an idle session is rejected, it does not stop anything.
	if err := s.Pause(); err == nil {
		t.Fatalf("pause in idle: expected an error")
	}
	if got, want := s.State(), fsm.Idle; got != want {
		t.Fatalf("state after bad pause: got=%v, want=%v", got, want)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if got, want := s.State(), fsm.Running; got != want {
		t.Fatalf("state after start: got=%v, want=%v", got, want)
	}

	// double-start is an invalid transition.
	if err := s.Start(); err == nil {
		t.Fatalf("double start: expected an error")
	}

	if err := s.Pause(); err != nil {
		t.Fatalf("could not pause: %+v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("could not resume: %+v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("could not stop: %+v", err)
	}
	if got, want := s.State(), fsm.Stopped; got != want {
		t.Fatalf("state after stop: got=%v, want=%v", got, want)
	}

	// stopped sessions must be reset before reuse.
	if err := s.Start(); err == nil {
		t.Fatalf("start from stopped: expected an error")
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("could not reset: %+v", err)
	}
	if got, want := s.State(), fsm.Idle; got != want {
		t.Fatalf("state after reset: got=%v, want=%v", got, want)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("could not restart after reset: %+v", err)
	}
}

func TestSessionIngest(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}})

	// samples before start are rejected and counted.
	err := s.Ingest("ch0", 0, 1)
	if !xerrors.Is(err, ErrRejected) {
		t.Fatalf("ingest in idle: got err=%v, want %v", err, ErrRejected)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Ingest("ch0", float64(i), float64(i)); err != nil {
			t.Fatalf("could not ingest sample %d: %+v", i, err)
		}
	}

	// unknown channels are rejected, acquisition keeps going.
	err = s.Ingest("bogus", 10, 10)
	if !xerrors.Is(err, ErrRejected) {
		t.Fatalf("ingest on unknown channel: got err=%v, want %v", err, ErrRejected)
	}

	if err := s.Pause(); err != nil {
		t.Fatalf("could not pause: %+v", err)
	}
	err = s.Ingest("ch0", 11, 11)
	if !xerrors.Is(err, ErrRejected) {
		t.Fatalf("ingest while paused: got err=%v, want %v", err, ErrRejected)
	}

	if got, want := s.Captured(), uint64(10); got != want {
		t.Fatalf("captured: got=%d, want=%d", got, want)
	}
	if got, want := s.Rejected(), uint64(3); got != want {
		t.Fatalf("rejected: got=%d, want=%d", got, want)
	}

	snap, err := s.Snapshot("ch0")
	if err != nil {
		t.Fatalf("could not snapshot: %+v", err)
	}
	if got, want := len(snap), 10; got != want {
		t.Fatalf("snapshot len: got=%d, want=%d", got, want)
	}

	_, err = s.Snapshot("bogus")
	if !xerrors.Is(err, ErrUnknownChannel) {
		t.Fatalf("snapshot of unknown channel: got err=%v, want %v", err, ErrUnknownChannel)
	}
}

func TestSessionReset(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}})

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Ingest("ch0", float64(i), float64(i)); err != nil {
			t.Fatalf("could not ingest: %+v", err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("could not stop: %+v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("could not reset: %+v", err)
	}

	if got := s.Captured(); got != 0 {
		t.Fatalf("captured after reset: got=%d, want=0", got)
	}
	snap, err := s.Snapshot("ch0")
	if err != nil {
		t.Fatalf("could not snapshot: %+v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("snapshot after reset: got %d samples, want 0", len(snap))
	}

	// buffer totals are monotonic across resets.
	n, err := s.Total("ch0")
	if err != nil {
		t.Fatalf("could not read total: %+v", err)
	}
	if got, want := n, uint64(5); got != want {
		t.Fatalf("total after reset: got=%d, want=%d", got, want)
	}
}

func TestSessionSingleShot(t *testing.T) {
	s := newTestSession(t, SessionConfig{
		Mode: SingleShot, Rate: 100, Channels: []string{"ch0"},
		BufCap: MinBufferCap, Count: 5,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Ingest("ch0", float64(i), float64(i)); err != nil {
			t.Fatalf("could not ingest sample %d: %+v", i, err)
		}
	}

	if got, want := s.State(), fsm.Stopped; got != want {
		t.Fatalf("state after %d samples: got=%v, want=%v", 5, got, want)
	}
	err := s.Ingest("ch0", 5, 5)
	if !xerrors.Is(err, ErrRejected) {
		t.Fatalf("ingest after auto-stop: got err=%v, want %v", err, ErrRejected)
	}
	if got, want := s.Captured(), uint64(5); got != want {
		t.Fatalf("captured: got=%d, want=%d", got, want)
	}
}

func TestSessionLevelTrigger(t *testing.T) {
	s := newTestSession(t, SessionConfig{
		Mode: Triggered, Rate: 100, Channels: []string{"ch0", "ch1"},
		Trigger: trigger.Config{Kind: trigger.Level, Level: 0.5, Slope: trigger.Rising, Source: "ch0"},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if got, want := s.State(), fsm.Waiting; got != want {
		t.Fatalf("state after arm: got=%v, want=%v", got, want)
	}

	// pre-trigger samples are accepted but not buffered.
	for i, v := range []float64{0.0, 0.4} {
		if err := s.Ingest("ch0", float64(i), v); err != nil {
			t.Fatalf("could not ingest pre-trigger sample %d: %+v", i, err)
		}
	}
	// non-source channels do not feed the trigger.
	if err := s.Ingest("ch1", 0, 100); err != nil {
		t.Fatalf("could not ingest non-source sample: %+v", err)
	}
	if got, want := s.State(), fsm.Waiting; got != want {
		t.Fatalf("state before crossing: got=%v, want=%v", got, want)
	}
	if got := s.Captured(); got != 0 {
		t.Fatalf("captured before crossing: got=%d, want=0", got)
	}

	// the firing sample is the first buffered one.
	if err := s.Ingest("ch0", 2, 0.6); err != nil {
		t.Fatalf("could not ingest firing sample: %+v", err)
	}
	if got, want := s.State(), fsm.Running; got != want {
		t.Fatalf("state after crossing: got=%v, want=%v", got, want)
	}
	snap, err := s.Snapshot("ch0")
	if err != nil {
		t.Fatalf("could not snapshot: %+v", err)
	}
	if len(snap) != 1 || snap[0].Value != 0.6 {
		t.Fatalf("buffered samples after fire: got=%v, want=[{2 0.6}]", snap)
	}
}

func TestSessionExternalTrigger(t *testing.T) {
	s := newTestSession(t, SessionConfig{
		Mode: Triggered, Rate: 100, Channels: []string{"ch0"},
		Trigger: trigger.Config{Kind: trigger.External},
	})

	// firing before arming is an error.
	if err := s.Fire(); err == nil {
		t.Fatalf("fire in idle: expected an error")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if err := s.Fire(); err != nil {
		t.Fatalf("could not fire: %+v", err)
	}
	if got, want := s.State(), fsm.Running; got != want {
		t.Fatalf("state after fire: got=%v, want=%v", got, want)
	}
	if err := s.Ingest("ch0", 0, 1); err != nil {
		t.Fatalf("could not ingest after fire: %+v", err)
	}
	if got, want := s.Captured(), uint64(1); got != want {
		t.Fatalf("captured: got=%d, want=%d", got, want)
	}
}

func TestSessionArmTimeout(t *testing.T) {
	s := newTestSession(t, SessionConfig{
		Mode: Triggered, Rate: 100, Channels: []string{"ch0"},
		Trigger: trigger.Config{
			Kind: trigger.Level, Level: 10, Slope: trigger.Rising, Source: "ch0",
			ArmTimeout: 10 * time.Millisecond,
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != fsm.Error {
		if time.Now().After(deadline) {
			t.Fatalf("session never faulted, state=%v", s.State())
		}
		time.Sleep(1 * time.Millisecond)
	}

	if err := s.Err(); !xerrors.Is(err, ErrArmTimeout) {
		t.Fatalf("fault: got err=%v, want %v", err, ErrArmTimeout)
	}

	// error is terminal until reset.
	if err := s.Start(); err == nil {
		t.Fatalf("start in error state: expected an error")
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("could not reset: %+v", err)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("fault after reset: got err=%v, want nil", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("could not rearm after reset: %+v", err)
	}
}

func TestSessionTimeTrigger(t *testing.T) {
	s := newTestSession(t, SessionConfig{
		Mode: Triggered, Rate: 100, Channels: []string{"ch0"},
		Trigger: trigger.Config{Kind: trigger.Time, Delay: 10 * time.Millisecond},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if got, want := s.State(), fsm.Waiting; got != want {
		t.Fatalf("state after arm: got=%v, want=%v", got, want)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != fsm.Running {
		if time.Now().After(deadline) {
			t.Fatalf("trigger never fired, state=%v", s.State())
		}
		time.Sleep(1 * time.Millisecond)
	}
}

func TestSessionSetTrigger(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}})

	cfg := trigger.Config{Kind: trigger.Level, Level: 1, Slope: trigger.Rising, Source: "ch0"}
	if err := s.SetTrigger(cfg); err != nil {
		t.Fatalf("could not set trigger: %+v", err)
	}
	if got, want := s.Config().Mode, Triggered; got != want {
		t.Fatalf("mode after set-trigger: got=%v, want=%v", got, want)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	// the trigger is immutable once armed.
	if err := s.SetTrigger(cfg); err == nil {
		t.Fatalf("set-trigger while armed: expected an error")
	}
}

func TestSessionSetTriggerUnknownSource(t *testing.T) {
	s := newTestSession(t, SessionConfig{Mode: Continuous, Rate: 100, Channels: []string{"ch0"}})

	// a source outside the session channels could never fire: samples
	// on it are rejected before they reach the evaluator. It must be
	// refused like it is at session creation.
	for _, kind := range []trigger.Kind{trigger.Level, trigger.Edge} {
		cfg := trigger.Config{Kind: kind, Level: 1, Slope: trigger.Rising, Source: "bogus"}
		err := s.SetTrigger(cfg)
		if err == nil {
			t.Fatalf("%v trigger with unknown source: expected an error", kind)
		}
		var cerr *ConfigError
		if !xerrors.As(err, &cerr) {
			t.Fatalf("%v trigger with unknown source: got err=%v, want a ConfigError", kind, err)
		}
	}

	// the session is untouched and still accepts a valid replacement.
	if got, want := s.Config().Mode, Continuous; got != want {
		t.Fatalf("mode after refused set-trigger: got=%v, want=%v", got, want)
	}
	cfg := trigger.Config{Kind: trigger.Level, Level: 1, Slope: trigger.Rising, Source: "ch0"}
	if err := s.SetTrigger(cfg); err != nil {
		t.Fatalf("could not set valid trigger: %+v", err)
	}
}
