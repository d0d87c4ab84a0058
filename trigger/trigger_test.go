// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trigger // import "github.com/go-daq/acq/trigger"

import (
	"testing"
	"time"
)

func TestLevelTrigger(t *testing.T) {
	now := time.Now()
	for _, tt := range []struct {
		name  string
		slope Slope
		level float64
		vs    []float64
		want  int // index of the firing sample, -1 for no fire
	}{
		{
			name:  "rising-crossing",
			slope: Rising,
			level: 0.5,
			vs:    []float64{0.0, 0.4, 0.6},
			want:  2,
		},
		{
			name:  "rising-boundary-does-not-fire",
			slope: Rising,
			level: 0.5,
			vs:    []float64{0.5, 0.5, 0.5},
			want:  -1,
		},
		{
			name:  "rising-touch-then-hold",
			slope: Rising,
			level: 0.5,
			vs:    []float64{0.4, 0.5, 0.5},
			want:  1,
		},
		{
			name:  "rising-first-sample-never-fires",
			slope: Rising,
			level: 0.5,
			vs:    []float64{1.0},
			want:  -1,
		},
		{
			name:  "falling-crossing",
			slope: Falling,
			level: 0.5,
			vs:    []float64{1.0, 0.5, 0.4},
			want:  2,
		},
		{
			name:  "falling-ignores-rise",
			slope: Falling,
			level: 0.5,
			vs:    []float64{0.0, 1.0, 2.0},
			want:  -1,
		},
		{
			name:  "either-fires-on-fall",
			slope: Either,
			level: 0.5,
			vs:    []float64{1.0, 0.0},
			want:  1,
		},
		{
			name:  "either-fires-on-rise",
			slope: Either,
			level: 0.5,
			vs:    []float64{0.0, 1.0},
			want:  1,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(Config{Kind: Level, Level: tt.level, Slope: tt.slope, Source: "ch0"})
			if err != nil {
				t.Fatalf("could not create evaluator: %+v", err)
			}
			ev.Arm(now)

			fired := -1
			for i, v := range tt.vs {
				if ev.Eval(now, v) {
					fired = i
					break
				}
			}
			if fired != tt.want {
				t.Fatalf("invalid firing index: got=%d, want=%d", fired, tt.want)
			}
		})
	}
}

func TestLevelTriggerFiresOnce(t *testing.T) {
	now := time.Now()
	ev, err := New(Config{Kind: Level, Level: 0.5, Slope: Rising, Source: "ch0"})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	ev.Arm(now)

	n := 0
	for _, v := range []float64{0.0, 1.0, 0.0, 1.0} {
		if ev.Eval(now, v) {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("trigger fired %d times, want 1", n)
	}
	if !ev.Fired() {
		t.Fatalf("evaluator did not record firing")
	}
}

func TestImmediateTrigger(t *testing.T) {
	ev, err := New(Config{Kind: Immediate})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	now := time.Now()
	ev.Arm(now)
	if !ev.Eval(now, 42) {
		t.Fatalf("immediate trigger did not fire on first sample")
	}
}

func TestEdgeTrigger(t *testing.T) {
	// an edge trigger is a level trigger with an implicit level.
	ev, err := New(Config{Kind: Edge, Slope: Rising, Source: "ch0"})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	now := time.Now()
	ev.Arm(now)

	if ev.Eval(now, -1) {
		t.Fatalf("edge trigger fired on first sample")
	}
	if !ev.Eval(now, +1) {
		t.Fatalf("edge trigger did not fire on zero crossing")
	}
}

func TestTimeTrigger(t *testing.T) {
	ev, err := New(Config{Kind: Time, Delay: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	now := time.Now()
	ev.Arm(now)

	if ev.Eval(now.Add(50*time.Millisecond), 0) {
		t.Fatalf("time trigger fired before delay")
	}
	if !ev.Eval(now.Add(150*time.Millisecond), 0) {
		t.Fatalf("time trigger did not fire after delay")
	}
}

func TestExternalTrigger(t *testing.T) {
	ev, err := New(Config{Kind: External})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	now := time.Now()
	ev.Arm(now)

	if ev.Eval(now, 1e9) {
		t.Fatalf("external trigger fired from sample values")
	}
	ev.Fire()
	if !ev.Eval(now, 0) {
		t.Fatalf("external trigger did not fire after signal")
	}
}

func TestArmTimeout(t *testing.T) {
	ev, err := New(Config{Kind: External, ArmTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("could not create evaluator: %+v", err)
	}
	now := time.Now()
	ev.Arm(now)

	if ev.TimedOut(now.Add(50 * time.Millisecond)) {
		t.Fatalf("trigger timed out too early")
	}
	if !ev.TimedOut(now.Add(150 * time.Millisecond)) {
		t.Fatalf("trigger did not time out")
	}

	ev.Fire()
	ev.Eval(now, 0)
	if ev.TimedOut(now.Add(time.Hour)) {
		t.Fatalf("fired trigger reported a timeout")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "immediate", cfg: Config{Kind: Immediate}, ok: true},
		{name: "level", cfg: Config{Kind: Level, Source: "ch0"}, ok: true},
		{name: "level-no-source", cfg: Config{Kind: Level}, ok: false},
		{name: "level-bad-slope", cfg: Config{Kind: Level, Source: "ch0", Slope: Slope(9)}, ok: false},
		{name: "time", cfg: Config{Kind: Time, Delay: time.Second}, ok: true},
		{name: "time-no-delay", cfg: Config{Kind: Time}, ok: false},
		{name: "bad-kind", cfg: Config{Kind: Kind(9)}, ok: false},
		{name: "negative-timeout", cfg: Config{Kind: Immediate, ArmTimeout: -time.Second}, ok: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("invalid validation: got err=%v, want ok=%v", err, tt.ok)
			}
		})
	}
}
