// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package siggen provides deterministic and noisy test signal sources
// to feed acquisition channels.
package siggen // import "github.com/go-daq/acq/siggen"

import (
	"context"
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// Source produces the signal value at time t, in seconds.
type Source interface {
	Sample(t float64) float64
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(t float64) float64

func (f SourceFunc) Sample(t float64) float64 { return f(t) }

// Sine is a sinusoid with an optional DC offset.
type Sine struct {
	Amp    float64 // amplitude
	Freq   float64 // frequency, in Hz
	Phase  float64 // phase, in radians
	Offset float64
}

func (s Sine) Sample(t float64) float64 {
	return s.Offset + s.Amp*math.Sin(2*math.Pi*s.Freq*t+s.Phase)
}

// Ramp is a periodic sawtooth sweeping [0, Amp).
type Ramp struct {
	Amp  float64
	Freq float64 // repetition rate, in Hz
}

func (r Ramp) Sample(t float64) float64 {
	x := t * r.Freq
	return r.Amp * (x - math.Floor(x))
}

// Noise is white noise drawn from a normal distribution.
type Noise struct {
	Std    float64
	Offset float64

	rng *rand.Rand
}

// NewNoise creates a noise source with a fixed seed.
func NewNoise(std, offset float64, seed uint64) *Noise {
	return &Noise{
		Std:    std,
		Offset: offset,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (n *Noise) Sample(t float64) float64 {
	return n.Offset + n.Std*n.rng.NormFloat64()
}

// Add sums several sources, e.g. a sine with noise on top.
type Add []Source

func (a Add) Sample(t float64) float64 {
	v := 0.0
	for _, src := range a {
		v += src.Sample(t)
	}
	return v
}

// Feed pumps samples of src at the given rate into fn until the
// context is done or fn fails. Timestamps start at zero and advance by
// the nominal sampling period.
func Feed(ctx context.Context, src Source, rate float64, fn func(t, v float64) error) error {
	period := time.Duration(float64(time.Second) / rate)
	tick := time.NewTicker(period)
	defer tick.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			t := now.Sub(start).Seconds()
			if err := fn(t, src.Sample(t)); err != nil {
				return err
			}
		}
	}
}
