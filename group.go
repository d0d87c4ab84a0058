// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"sync"
	"time"

	"github.com/go-daq/acq/fsm"
	"github.com/go-daq/acq/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Synchronization tolerance bounds.
const (
	MinTolerance     = 100 * time.Microsecond
	MaxTolerance     = 1 * time.Second
	DefaultTolerance = 5 * time.Millisecond
)

// GroupConfig describes a synchronization group.
type GroupConfig struct {
	Name       string        // optional human-readable label
	Master     string        // session id of the master clock, or "auto"
	Tolerance  time.Duration // max timestamp skew treated as simultaneous
	WaitForAll bool          // all members must start within Tolerance or none do
}

func (cfg *GroupConfig) norm() error {
	if cfg.Master == "" {
		cfg.Master = "auto"
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Tolerance < MinTolerance || cfg.Tolerance > MaxTolerance {
		return cfgErr("tolerance", "%v not in [%v, %v]", cfg.Tolerance, MinTolerance, MaxTolerance)
	}
	return nil
}

// Group coordinates several sessions so they start, stop and align as
// one instrument.
type Group struct {
	id  string
	cfg GroupConfig
	msg log.MsgStream

	mu      sync.RWMutex
	state   fsm.Status
	members []*Session
	master  string // elected master session id, "" until data arrived
}

func newGroup(id string, cfg GroupConfig, msg log.MsgStream) (*Group, error) {
	if err := cfg.norm(); err != nil {
		return nil, err
	}
	return &Group{
		id:    id,
		cfg:   cfg,
		msg:   msg,
		state: fsm.Idle,
	}, nil
}

func (g *Group) ID() string   { return g.id }
func (g *Group) Name() string { return g.cfg.Name }

func (g *Group) State() fsm.Status {
	g.mu.RLock()
	st := g.state
	g.mu.RUnlock()
	return st
}

// Members returns the member sessions, in the order they were added.
func (g *Group) Members() []*Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Session(nil), g.members...)
}

// add attaches a session to the group. Only an idle or stopped group
// accepts new members.
func (g *Group) add(s *Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case fsm.Idle, fsm.Stopped:
		// ok
	default:
		return xerrors.Errorf("%s: cannot add member in state %v", g.id, g.state)
	}
	for _, m := range g.members {
		if m.ID() == s.ID() {
			return xerrors.Errorf("%s: session %q already a member", g.id, s.ID())
		}
	}
	g.members = append(g.members, s)
	return nil
}

// remove drops a member from the group, if present.
func (g *Group) remove(sid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m.ID() == sid {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

// Start starts every member concurrently. With WaitForAll, members that
// fail to start within the group tolerance of the first one abort the
// whole start: already-started members are stopped again and the group
// reports ErrSyncTimeout.
func (g *Group) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case fsm.Idle, fsm.Stopped, fsm.Error:
		// ok
	default:
		return xerrors.Errorf("%s: invalid state transition %v -> started", g.id, g.state)
	}
	if len(g.members) == 0 {
		return xerrors.Errorf("%s: no members", g.id)
	}

	g.master = ""

	if !g.cfg.WaitForAll {
		var grp errgroup.Group
		for _, m := range g.members {
			m := m
			grp.Go(m.Start)
		}
		if err := grp.Wait(); err != nil {
			g.state = fsm.Error
			return xerrors.Errorf("%s: could not start members: %w", g.id, err)
		}
		g.state = fsm.Running
		return nil
	}

	type result struct {
		s   *Session
		err error
	}
	out := make(chan result, len(g.members))
	for _, m := range g.members {
		m := m
		go func() { out <- result{m, m.Start()} }()
	}

	var (
		ok      []*Session
		failed  error
		timer   *time.Timer
		expired <-chan time.Time
	)
	for n := 0; n < len(g.members); n++ {
		select {
		case res := <-out:
			if res.err != nil {
				if failed == nil {
					failed = res.err
				}
				continue
			}
			ok = append(ok, res.s)
			if timer == nil {
				timer = time.NewTimer(g.cfg.Tolerance)
				expired = timer.C
			}
		case <-expired:
			failed = xerrors.Errorf("%s: %d of %d members not started within %v: %w",
				g.id, len(g.members)-len(ok), len(g.members), g.cfg.Tolerance, ErrSyncTimeout)
			n = len(g.members)
		}
	}
	if timer != nil {
		timer.Stop()
	}

	if failed != nil {
		for _, m := range ok {
			if err := m.Stop(); err != nil {
				g.msg.Errorf("could not roll back member %q: %+v", m.ID(), err)
			}
		}
		g.state = fsm.Stopped
		return failed
	}

	g.state = fsm.Running
	return nil
}

// Pause suspends every member. The fan-out is best-effort: all members
// are attempted, the first failure is reported and the group still
// moves to Paused so the remaining members track the joint state. A
// member whose own transition failed, e.g. one still waiting for its
// trigger, keeps its state and is reported in the returned error.
func (g *Group) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != fsm.Running {
		return xerrors.Errorf("%s: invalid state transition %v -> paused", g.id, g.state)
	}

	var first error
	for _, m := range g.members {
		if err := m.Pause(); err != nil && first == nil {
			first = err
		}
	}
	g.state = fsm.Paused
	if first != nil {
		return xerrors.Errorf("%s: could not pause members: %w", g.id, first)
	}
	return nil
}

// Resume resumes every paused member. Like Pause, the fan-out is
// best-effort: the first failure is reported and the group still moves
// to Running.
func (g *Group) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != fsm.Paused {
		return xerrors.Errorf("%s: invalid state transition %v -> running", g.id, g.state)
	}

	var first error
	for _, m := range g.members {
		if err := m.Resume(); err != nil && first == nil {
			first = err
		}
	}
	g.state = fsm.Running
	if first != nil {
		return xerrors.Errorf("%s: could not resume members: %w", g.id, first)
	}
	return nil
}

// Stop stops every member. The fan-out is best-effort: all members are
// attempted, the first failure is reported and the group still moves
// to Stopped. Only Start carries the WaitForAll barrier and rollback;
// stopping is always allowed to make progress.
func (g *Group) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case fsm.Running, fsm.Paused:
		// ok
	default:
		return xerrors.Errorf("%s: invalid state transition %v -> stopped", g.id, g.state)
	}

	var first error
	for _, m := range g.members {
		err := m.Stop()
		// a member that already reached Stopped on its own, e.g. a
		// single-shot session hitting its count, is at the joint state.
		if err != nil && m.State() != fsm.Stopped && first == nil {
			first = err
		}
	}
	g.state = fsm.Stopped
	if first != nil {
		return xerrors.Errorf("%s: could not stop members: %w", g.id, first)
	}
	return nil
}

// Master returns the master session. With an "auto" master the member
// whose first sample of the current run arrived earliest is elected and
// memoized until the next start.
func (g *Group) Master() (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.masterLocked()
}

func (g *Group) masterLocked() (*Session, error) {
	if g.master != "" {
		for _, m := range g.members {
			if m.ID() == g.master {
				return m, nil
			}
		}
	}

	if g.cfg.Master != "auto" {
		for _, m := range g.members {
			if m.ID() == g.cfg.Master {
				g.master = m.ID()
				return m, nil
			}
		}
		return nil, xerrors.Errorf("%s: master session %q: %w", g.id, g.cfg.Master, ErrUnknownSession)
	}

	var (
		best  *Session
		first float64
	)
	for _, m := range g.members {
		at, ok := m.FirstSeen()
		if !ok {
			continue
		}
		if best == nil || at < first {
			best, first = m, at
		}
	}
	if best == nil {
		return nil, xerrors.Errorf("%s: no member reported data yet", g.id)
	}
	g.master = best.ID()
	return best, nil
}
