// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trigger decides when an armed acquisition should begin sampling.
package trigger // import "github.com/go-daq/acq/trigger"

import (
	"fmt"
	"time"

	"golang.org/x/xerrors"
)

// Kind enumerates the supported trigger conditions.
// The set is closed: no user-defined trigger kinds exist.
type Kind uint8

const (
	Immediate Kind = iota // fires on the first sample
	Level                 // fires when the signal crosses a level
	Edge                  // level trigger with an implicit level (0 unless configured)
	Time                  // fires once a delay from arm time has elapsed
	External              // fires only on an explicit caller signal
)

func (k Kind) String() string {
	switch k {
	case Immediate:
		return "immediate"
	case Level:
		return "level"
	case Edge:
		return "edge"
	case Time:
		return "time"
	case External:
		return "external"
	default:
		panic(fmt.Errorf("invalid trigger kind value %d", uint8(k)))
	}
}

// Slope selects the crossing direction of a level or edge trigger.
type Slope uint8

const (
	Rising Slope = iota
	Falling
	Either
)

func (s Slope) String() string {
	switch s {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case Either:
		return "either"
	default:
		panic(fmt.Errorf("invalid trigger slope value %d", uint8(s)))
	}
}

// Config describes a trigger condition.
// It is immutable for the lifetime of an acquisition once armed.
type Config struct {
	Kind       Kind
	Level      float64       // threshold for Level and Edge triggers
	Slope      Slope         // crossing direction for Level and Edge triggers
	Source     string        // channel the trigger watches
	Delay      time.Duration // offset from arm time for Time triggers
	ArmTimeout time.Duration // 0 waits forever
}

func (cfg Config) Validate() error {
	switch cfg.Kind {
	case Immediate, External:
		// ok
	case Level, Edge:
		if cfg.Source == "" {
			return xerrors.Errorf("trigger: %v trigger needs a source channel", cfg.Kind)
		}
		switch cfg.Slope {
		case Rising, Falling, Either:
			// ok
		default:
			return xerrors.Errorf("trigger: invalid slope value %d", uint8(cfg.Slope))
		}
	case Time:
		if cfg.Delay <= 0 {
			return xerrors.Errorf("trigger: time trigger needs a positive delay")
		}
	default:
		return xerrors.Errorf("trigger: invalid kind value %d", uint8(cfg.Kind))
	}
	if cfg.ArmTimeout < 0 {
		return xerrors.Errorf("trigger: negative arm timeout")
	}
	return nil
}

// Evaluator classifies incoming samples against a trigger configuration.
//
// An Evaluator is not safe for concurrent use; the owning session
// serializes calls to it.
type Evaluator struct {
	cfg   Config
	armed time.Time
	prev  float64
	seen  bool
	ext   bool
	fired bool
}

func New(cfg Config) (*Evaluator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, xerrors.Errorf("could not create trigger evaluator: %w", err)
	}
	return &Evaluator{cfg: cfg}, nil
}

func (ev *Evaluator) Config() Config { return ev.cfg }

// Arm resets the evaluator and records the arm time.
func (ev *Evaluator) Arm(now time.Time) {
	ev.armed = now
	ev.seen = false
	ev.ext = false
	ev.fired = false
	ev.prev = 0
}

// Fired reports whether the trigger already fired since it was armed.
func (ev *Evaluator) Fired() bool { return ev.fired }

// Fire supplies the external fire signal. It only has an effect on
// External triggers.
func (ev *Evaluator) Fire() {
	if ev.cfg.Kind == External {
		ev.ext = true
	}
}

// TimedOut reports whether the arm timeout elapsed before the trigger fired.
func (ev *Evaluator) TimedOut(now time.Time) bool {
	if ev.fired || ev.cfg.ArmTimeout <= 0 {
		return false
	}
	return now.Sub(ev.armed) >= ev.cfg.ArmTimeout
}

// Eval classifies the sample v observed at time now on the source channel
// and reports whether the trigger fires on that sample.
//
// Level and Edge triggers follow the strict-inequality rule: a rising
// trigger fires when prev < level <= v, a falling one when
// prev >= level > v. The boundary sample prev == v == level never fires,
// so a flat signal sitting on the threshold cannot fire twice.
func (ev *Evaluator) Eval(now time.Time, v float64) bool {
	if ev.fired {
		return false
	}

	fire := false
	switch ev.cfg.Kind {
	case Immediate:
		fire = true

	case Level, Edge:
		if ev.seen {
			lvl := ev.cfg.Level
			rising := ev.prev < lvl && v >= lvl
			falling := ev.prev >= lvl && v < lvl
			switch ev.cfg.Slope {
			case Rising:
				fire = rising
			case Falling:
				fire = falling
			case Either:
				fire = rising || falling
			}
		}

	case Time:
		fire = now.Sub(ev.armed) >= ev.cfg.Delay

	case External:
		fire = ev.ext
	}

	ev.prev = v
	ev.seen = true
	if fire {
		ev.fired = true
	}
	return fire
}
