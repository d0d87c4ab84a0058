// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/go-daq/acq/fsm"
	"github.com/go-daq/acq/log"
	"github.com/go-daq/acq/stats"
)

// Engine owns every session and group and hands out identifiers.
// It is the single entry point control surfaces go through.
type Engine struct {
	msg log.MsgStream

	mu       sync.RWMutex
	sessions map[string]*Session
	groups   map[string]*Group

	reg       *prometheus.Registry
	ingested  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	active    prometheus.GaugeFunc
}

// NewEngine creates an empty acquisition engine.
func NewEngine(msg log.MsgStream) *Engine {
	if msg == nil {
		msg = log.Default
	}
	e := &Engine{
		msg:      msg,
		sessions: make(map[string]*Session),
		groups:   make(map[string]*Group),
		reg:      prometheus.NewRegistry(),
	}
	e.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acq",
		Name:      "samples_ingested_total",
		Help:      "Samples accepted into a session buffer.",
	}, []string{"session", "channel"})
	e.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acq",
		Name:      "samples_rejected_total",
		Help:      "Samples rejected by session state or channel.",
	}, []string{"session"})
	e.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acq",
		Name:      "batches_published_total",
		Help:      "Batches delivered to observers.",
	}, []string{"session"})
	e.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acq",
		Name:      "batches_dropped_total",
		Help:      "Batches dropped because an observer was too slow.",
	}, []string{"session"})
	e.active = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "acq",
		Name:      "sessions",
		Help:      "Number of registered sessions.",
	}, func() float64 {
		e.mu.RLock()
		n := len(e.sessions)
		e.mu.RUnlock()
		return float64(n)
	})
	e.reg.MustRegister(e.ingested, e.rejected, e.published, e.dropped, e.active)
	return e
}

// Gatherer exposes the engine metrics for scraping.
func (e *Engine) Gatherer() prometheus.Gatherer { return e.reg }

// Create registers a new session and returns it.
func (e *Engine) Create(cfg SessionConfig) (*Session, error) {
	id := uuid.New().String()
	s, err := newSession(id, cfg)
	if err != nil {
		return nil, xerrors.Errorf("could not create session: %w", err)
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	e.msg.Infof("created session %q (%s, %v, %g Hz)", id, cfg.Name, cfg.Mode, cfg.Rate)
	return s, nil
}

// Delete unregisters a session, stopping it first when needed.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
		for _, g := range e.groups {
			g.remove(id)
		}
	}
	e.mu.Unlock()

	if !ok {
		return xerrors.Errorf("session %q: %w", id, ErrUnknownSession)
	}
	switch s.State() {
	case fsm.Waiting, fsm.Running, fsm.Paused:
		if err := s.Stop(); err != nil {
			e.msg.Debugf("could not stop session %q on delete: %+v", id, err)
		}
	}
	e.msg.Infof("deleted session %q", id)
	return nil
}

// Session looks up a session by id.
func (e *Engine) Session(id string) (*Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("session %q: %w", id, ErrUnknownSession)
	}
	return s, nil
}

// Sessions returns every registered session, sorted by id.
func (e *Engine) Sessions() []*Session {
	e.mu.RLock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// CreateGroup registers a new synchronization group and returns it.
func (e *Engine) CreateGroup(cfg GroupConfig) (*Group, error) {
	id := uuid.New().String()
	g, err := newGroup(id, cfg, e.msg)
	if err != nil {
		return nil, xerrors.Errorf("could not create group: %w", err)
	}

	e.mu.Lock()
	e.groups[id] = g
	e.mu.Unlock()

	e.msg.Infof("created group %q (%s)", id, cfg.Name)
	return g, nil
}

// DeleteGroup unregisters a group. Member sessions stay registered.
func (e *Engine) DeleteGroup(id string) error {
	e.mu.Lock()
	_, ok := e.groups[id]
	delete(e.groups, id)
	e.mu.Unlock()

	if !ok {
		return xerrors.Errorf("group %q: %w", id, ErrUnknownGroup)
	}
	e.msg.Infof("deleted group %q", id)
	return nil
}

// Group looks up a group by id.
func (e *Engine) Group(id string) (*Group, error) {
	e.mu.RLock()
	g, ok := e.groups[id]
	e.mu.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("group %q: %w", id, ErrUnknownGroup)
	}
	return g, nil
}

// AddToGroup attaches a registered session to a registered group.
func (e *Engine) AddToGroup(gid, sid string) error {
	g, err := e.Group(gid)
	if err != nil {
		return err
	}
	s, err := e.Session(sid)
	if err != nil {
		return err
	}
	return g.add(s)
}

// Ingest routes one sample to a session and keeps the engine counters.
func (e *Engine) Ingest(sid, channel string, t, v float64) error {
	s, err := e.Session(sid)
	if err != nil {
		return err
	}
	buffered, err := s.ingest(channel, t, v)
	if err != nil {
		if xerrors.Is(err, ErrRejected) {
			e.rejected.WithLabelValues(sid).Inc()
		}
		return err
	}
	if buffered {
		e.ingested.WithLabelValues(sid, channel).Inc()
	}
	return nil
}

// NewPublisher creates a publisher for a registered session, wired to
// the engine publication metrics.
func (e *Engine) NewPublisher(sid string) (*Publisher, error) {
	s, err := e.Session(sid)
	if err != nil {
		return nil, err
	}
	p := NewPublisher(s, e.msg)
	p.published = e.published.WithLabelValues(sid)
	p.dropped = e.dropped.WithLabelValues(sid)
	return p, nil
}

// Start, Stop, Pause, Resume, Reset and Fire drive a registered
// session by id.
func (e *Engine) Start(sid string) error { return e.ctl(sid, (*Session).Start) }
func (e *Engine) Stop(sid string) error  { return e.ctl(sid, (*Session).Stop) }
func (e *Engine) Pause(sid string) error { return e.ctl(sid, (*Session).Pause) }

func (e *Engine) Resume(sid string) error { return e.ctl(sid, (*Session).Resume) }
func (e *Engine) Reset(sid string) error  { return e.ctl(sid, (*Session).Reset) }
func (e *Engine) Fire(sid string) error   { return e.ctl(sid, (*Session).Fire) }

func (e *Engine) ctl(sid string, fn func(*Session) error) error {
	s, err := e.Session(sid)
	if err != nil {
		return err
	}
	return fn(s)
}

// StatParams tunes a Statistics request. Zero values select defaults.
type StatParams struct {
	Window  string  // spectral window name
	Level   float64 // crossing level
	MinProm float64 // peak prominence floor
	MinSep  int     // peak separation floor, in samples
}

// Statistics computes one named analysis over the current buffer of a
// session channel. Known kinds are "rolling", "spectrum", "trend",
// "quality", "peaks" and "crossings".
func (e *Engine) Statistics(sid, channel, kind string, p StatParams) (interface{}, error) {
	s, err := e.Session(sid)
	if err != nil {
		return nil, err
	}
	data, err := s.Snapshot(channel)
	if err != nil {
		return nil, err
	}

	ts := make([]float64, len(data))
	xs := make([]float64, len(data))
	for i, smp := range data {
		ts[i] = smp.Time
		xs[i] = smp.Value
	}

	switch kind {
	case "rolling":
		return stats.Rolling(xs)
	case "spectrum":
		win := stats.Hann
		if p.Window != "" {
			var ok bool
			win, ok = stats.WindowByName(p.Window)
			if !ok {
				return nil, xerrors.Errorf("unknown spectral window %q", p.Window)
			}
		}
		return stats.Spectral(xs, s.Config().Rate, win)
	case "trend":
		return stats.Classify(ts, xs)
	case "quality":
		return stats.Assess(xs, stats.DefaultQualityPolicy())
	case "peaks":
		return stats.Peaks(ts, xs, p.MinProm, p.MinSep)
	case "crossings":
		return stats.Crossings(ts, xs, p.Level)
	default:
		return nil, xerrors.Errorf("unknown statistics kind %q", kind)
	}
}
