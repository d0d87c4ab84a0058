// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-daq/acq/fsm"
	"github.com/go-daq/acq/trigger"
	"golang.org/x/xerrors"
)

// Sampling rate bounds, in Hz.
const (
	MinRate = 0.001
	MaxRate = 1000000
)

// SessionConfig describes an acquisition session.
type SessionConfig struct {
	Name     string         // optional human-readable label
	Mode     Mode           // continuous, single-shot or triggered
	Rate     float64        // sampling rate, in Hz
	Channels []string       // channels samples may be ingested on
	BufCap   int            // per-channel buffer capacity (0 selects DefaultBufferCap)
	Count    int            // single-shot target sample count (0 selects BufCap)
	Trigger  trigger.Config // trigger condition for triggered mode
}

func (cfg *SessionConfig) norm() error {
	if cfg.Rate < MinRate || cfg.Rate > MaxRate {
		return cfgErr("sample rate", "%v Hz not in [%v, %v]", cfg.Rate, float64(MinRate), float64(MaxRate))
	}
	if len(cfg.Channels) == 0 {
		return cfgErr("channels", "no channels configured")
	}
	seen := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch == "" {
			return cfgErr("channels", "empty channel name")
		}
		if seen[ch] {
			return cfgErr("channels", "duplicate channel %q", ch)
		}
		seen[ch] = true
	}
	if cfg.BufCap == 0 {
		cfg.BufCap = DefaultBufferCap
	}
	if cfg.BufCap < MinBufferCap || cfg.BufCap > MaxBufferCap {
		return cfgErr("buffer capacity", "%d not in [%d, %d]", cfg.BufCap, MinBufferCap, MaxBufferCap)
	}
	switch cfg.Mode {
	case Continuous:
		// ok
	case SingleShot:
		if cfg.Count == 0 {
			cfg.Count = cfg.BufCap
		}
		if cfg.Count < 0 {
			return cfgErr("sample count", "negative count %d", cfg.Count)
		}
	case Triggered:
		if err := cfg.Trigger.Validate(); err != nil {
			return cfgErr("trigger", "%v", err)
		}
		switch cfg.Trigger.Kind {
		case trigger.Level, trigger.Edge:
			if !seen[cfg.Trigger.Source] {
				return cfgErr("trigger", "source channel %q not in session channels", cfg.Trigger.Source)
			}
		}
	default:
		return cfgErr("mode", "invalid mode value %d", uint8(cfg.Mode))
	}
	return nil
}

// Session is one independently-controlled acquisition run: a set of
// per-channel ring buffers, a trigger evaluator and a state machine.
//
// State transitions are serialized: one transition is in flight at a
// time, and a Stop is observable by the ingestion path immediately (no
// sample is buffered once the session reached Stopped).
type Session struct {
	id  string
	cfg SessionConfig

	mu        sync.RWMutex
	state     fsm.Status
	bufs      map[string]*Buffer
	trig      *trigger.Evaluator
	lastErr   error
	started   time.Time
	firstSeen float64 // engine time the first sample was buffered at, NaN until then
	captured  uint64  // samples buffered since the last reset
	rejected  uint64  // samples rejected since the last reset

	armTimer  *time.Timer
	fireTimer *time.Timer
}

func newSession(id string, cfg SessionConfig) (*Session, error) {
	err := cfg.norm()
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		state:     fsm.Idle,
		bufs:      make(map[string]*Buffer, len(cfg.Channels)),
		firstSeen: math.NaN(),
	}
	for _, ch := range cfg.Channels {
		buf, err := NewBuffer(cfg.BufCap)
		if err != nil {
			return nil, err
		}
		s.bufs[ch] = buf
	}
	if cfg.Mode == Triggered {
		s.trig, err = trigger.New(cfg.Trigger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.cfg.Name }

// Config returns a copy of the session configuration.
func (s *Session) Config() SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.Channels = append([]string(nil), s.cfg.Channels...)
	return cfg
}

func (s *Session) State() fsm.Status {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	return st
}

// Err returns the fault that moved the session to the Error state.
func (s *Session) Err() error {
	s.mu.RLock()
	err := s.lastErr
	s.mu.RUnlock()
	return err
}

// Channels returns the session channels, sorted.
func (s *Session) Channels() []string {
	chans := append([]string(nil), s.cfg.Channels...)
	sort.Strings(chans)
	return chans
}

// Captured returns the number of samples buffered since the last reset.
func (s *Session) Captured() uint64 {
	s.mu.RLock()
	n := s.captured
	s.mu.RUnlock()
	return n
}

// Rejected returns the number of samples rejected since the last reset.
func (s *Session) Rejected() uint64 {
	s.mu.RLock()
	n := s.rejected
	s.mu.RUnlock()
	return n
}

// FirstSeen returns the engine time the first sample of the current run
// was buffered at, and whether any sample was buffered yet.
func (s *Session) FirstSeen() (float64, bool) {
	s.mu.RLock()
	v := s.firstSeen
	s.mu.RUnlock()
	return v, !math.IsNaN(v)
}

// Start arms or starts the acquisition. Only an Idle session may start:
// a triggered session moves to WaitingTrigger, any other mode starts
// acquiring immediately.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Idle {
		return xerrors.Errorf("%s: invalid state transition %v -> started", s.id, s.state)
	}

	s.started = time.Now()
	s.firstSeen = math.NaN()

	if s.cfg.Mode != Triggered {
		s.state = fsm.Running
		return nil
	}

	s.state = fsm.Waiting
	s.trig.Arm(s.started)
	if d := s.cfg.Trigger.ArmTimeout; d > 0 {
		s.armTimer = time.AfterFunc(d, s.armExpired)
	}
	if s.cfg.Trigger.Kind == trigger.Time {
		s.fireTimer = time.AfterFunc(s.cfg.Trigger.Delay, s.delayElapsed)
	}
	return nil
}

// Stop ends the acquisition. No sample is buffered after Stop returns.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case fsm.Waiting, fsm.Running, fsm.Paused:
		// ok
	default:
		return xerrors.Errorf("%s: invalid state transition %v -> stopped", s.id, s.state)
	}

	s.stopTimers()
	s.state = fsm.Stopped
	return nil
}

// Pause suspends the acquisition. Samples ingested while paused are
// dropped and counted, not buffered.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Running {
		return xerrors.Errorf("%s: invalid state transition %v -> paused", s.id, s.state)
	}
	s.state = fsm.Paused
	return nil
}

// Resume resumes a paused acquisition.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Paused {
		return xerrors.Errorf("%s: invalid state transition %v -> running", s.id, s.state)
	}
	s.state = fsm.Running
	return nil
}

// Reset returns a Stopped or Error session to Idle, clearing its
// buffers and counters. The per-buffer total-inserted counters are
// monotonic and survive.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case fsm.Stopped, fsm.Error:
		// ok
	default:
		return xerrors.Errorf("%s: invalid state transition %v -> idle", s.id, s.state)
	}

	s.stopTimers()
	for _, buf := range s.bufs {
		buf.Clear()
	}
	s.captured = 0
	s.rejected = 0
	s.firstSeen = math.NaN()
	s.lastErr = nil
	s.state = fsm.Idle
	return nil
}

// SetTrigger replaces the trigger configuration. The trigger is
// immutable once acquisition starts: only an Idle session accepts a
// replacement.
func (s *Session) SetTrigger(cfg trigger.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Idle {
		return xerrors.Errorf("%s: cannot replace trigger in state %v", s.id, s.state)
	}
	switch cfg.Kind {
	case trigger.Level, trigger.Edge:
		if _, ok := s.bufs[cfg.Source]; !ok {
			return cfgErr("trigger", "source channel %q not in session channels", cfg.Source)
		}
	}
	ev, err := trigger.New(cfg)
	if err != nil {
		return err
	}
	s.cfg.Mode = Triggered
	s.cfg.Trigger = cfg
	s.trig = ev
	return nil
}

// Fire supplies the external fire signal to a waiting external trigger.
func (s *Session) Fire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Waiting {
		return xerrors.Errorf("%s: cannot fire in state %v", s.id, s.state)
	}
	if s.cfg.Trigger.Kind != trigger.External {
		return xerrors.Errorf("%s: trigger is %v, not external", s.id, s.cfg.Trigger.Kind)
	}
	s.trig.Fire()
	if s.trig.Eval(time.Now(), math.NaN()) {
		s.toRunning()
	}
	return nil
}

// Ingest hands one sample to the session. It is rejected (counted, not
// fatal) when the session is neither acquiring nor waiting for its
// trigger, or when the channel is unknown. While waiting, samples feed
// the trigger evaluator and the firing sample is the first one buffered.
func (s *Session) Ingest(channel string, t, v float64) error {
	_, err := s.ingest(channel, t, v)
	return err
}

// ingest reports whether the sample was buffered: a pre-trigger sample
// is accepted (nil error) but only feeds the evaluator, so callers
// keeping counters can tell the two apart.
func (s *Session) ingest(channel string, t, v float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case fsm.Waiting:
		buf, ok := s.bufs[channel]
		if !ok {
			s.rejected++
			return false, xerrors.Errorf("%s: channel %q: %w", s.id, channel, ErrRejected)
		}
		cfg := s.trig.Config()
		eval := true
		switch cfg.Kind {
		case trigger.Level, trigger.Edge:
			eval = channel == cfg.Source
		}
		if eval && s.trig.Eval(time.Now(), v) {
			s.toRunning()
			s.buffer(buf, Sample{Time: t, Value: v})
			return true, nil
		}
		return false, nil

	case fsm.Running:
		buf, ok := s.bufs[channel]
		if !ok {
			s.rejected++
			return false, xerrors.Errorf("%s: channel %q: %w", s.id, channel, ErrRejected)
		}
		s.buffer(buf, Sample{Time: t, Value: v})
		if s.cfg.Mode == SingleShot && s.captured >= uint64(s.cfg.Count) {
			s.state = fsm.Stopped
		}
		return true, nil

	default:
		s.rejected++
		return false, xerrors.Errorf("%s: session is %v: %w", s.id, s.state, ErrRejected)
	}
}

// buffer appends one accepted sample. Callers hold s.mu.
func (s *Session) buffer(buf *Buffer, smp Sample) {
	buf.Append(smp)
	s.captured++
	if math.IsNaN(s.firstSeen) {
		s.firstSeen = Now()
	}
}

// Snapshot returns a consistent copy of the channel buffer.
func (s *Session) Snapshot(channel string) ([]Sample, error) {
	buf, err := s.channel(channel)
	if err != nil {
		return nil, err
	}
	return buf.Snapshot(), nil
}

// Latest returns a consistent copy of the last n samples of the channel.
func (s *Session) Latest(channel string, n int) ([]Sample, error) {
	buf, err := s.channel(channel)
	if err != nil {
		return nil, err
	}
	return buf.Latest(n), nil
}

// Total returns the total number of samples ever inserted on the channel.
func (s *Session) Total(channel string) (uint64, error) {
	buf, err := s.channel(channel)
	if err != nil {
		return 0, err
	}
	return buf.Total(), nil
}

func (s *Session) channel(channel string) (*Buffer, error) {
	buf, ok := s.bufs[channel]
	if !ok {
		return nil, xerrors.Errorf("%s: channel %q: %w", s.id, channel, ErrUnknownChannel)
	}
	return buf, nil
}

// toRunning promotes a waiting session whose trigger fired.
// Callers hold s.mu.
func (s *Session) toRunning() {
	s.stopTimers()
	s.state = fsm.Running
}

// stopTimers cancels the arm and delay timers. Callers hold s.mu.
func (s *Session) stopTimers() {
	if s.armTimer != nil {
		s.armTimer.Stop()
		s.armTimer = nil
	}
	if s.fireTimer != nil {
		s.fireTimer.Stop()
		s.fireTimer = nil
	}
}

func (s *Session) armExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Waiting {
		return
	}
	s.stopTimers()
	s.state = fsm.Error
	s.lastErr = xerrors.Errorf("%s: trigger never fired within %v: %w", s.id, s.cfg.Trigger.ArmTimeout, ErrArmTimeout)
}

func (s *Session) delayElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != fsm.Waiting {
		return
	}
	if s.trig.Eval(time.Now(), math.NaN()) {
		s.toRunning()
	}
}
