// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"math"

	"golang.org/x/xerrors"
)

// Series is one channel of one member session, resampled onto the
// master time grid. Points the member cannot account for within the
// group tolerance hold NaN and are flagged in Missing.
type Series struct {
	Session string    `json:"session"`
	Channel string    `json:"channel"`
	Values  []float64 `json:"values"`
	Missing []bool    `json:"missing"`
}

// Aligned is a cross-instrument view of the group on the master clock.
type Aligned struct {
	Master string    `json:"master"`
	Times  []float64 `json:"times"`
	Series []Series  `json:"series"`
}

// Aligned resamples every member channel onto the master time grid.
// The grid is the timestamp sequence of the master session's first
// configured channel. A member value at a grid point is, in order of
// preference: the sample with exactly that timestamp, the linear
// interpolation of the two samples bracketing it when the nearer one is
// within the group tolerance, or missing. Member data is never
// extrapolated beyond its first or last sample.
func (g *Group) Aligned() (*Aligned, error) {
	g.mu.Lock()
	master, err := g.masterLocked()
	members := append([]*Session(nil), g.members...)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	chans := master.Config().Channels
	if len(chans) == 0 {
		return nil, xerrors.Errorf("%s: master %q has no channels", g.id, master.ID())
	}
	grid, err := master.Snapshot(chans[0])
	if err != nil {
		return nil, err
	}
	times := make([]float64, len(grid))
	for i, smp := range grid {
		times[i] = smp.Time
	}

	tol := g.cfg.Tolerance.Seconds()
	out := &Aligned{
		Master: master.ID(),
		Times:  times,
	}
	for _, m := range members {
		for _, ch := range m.Config().Channels {
			if m == master && ch == chans[0] {
				vals := make([]float64, len(grid))
				for i, smp := range grid {
					vals[i] = smp.Value
				}
				out.Series = append(out.Series, Series{
					Session: m.ID(),
					Channel: ch,
					Values:  vals,
					Missing: make([]bool, len(grid)),
				})
				continue
			}
			data, err := m.Snapshot(ch)
			if err != nil {
				return nil, err
			}
			out.Series = append(out.Series, alignSeries(m.ID(), ch, times, data, tol))
		}
	}
	return out, nil
}

// alignSeries resamples one channel onto the master grid with a single
// forward sweep over both sequences.
func alignSeries(session, channel string, times []float64, data []Sample, tol float64) Series {
	sr := Series{
		Session: session,
		Channel: channel,
		Values:  make([]float64, len(times)),
		Missing: make([]bool, len(times)),
	}

	j := 0
	for i, t := range times {
		for j < len(data) && data[j].Time < t {
			j++
		}
		switch {
		case j < len(data) && data[j].Time == t:
			sr.Values[i] = data[j].Value
		case j > 0 && j < len(data):
			lo, hi := data[j-1], data[j]
			if math.Min(t-lo.Time, hi.Time-t) > tol {
				sr.Values[i] = math.NaN()
				sr.Missing[i] = true
				continue
			}
			f := (t - lo.Time) / (hi.Time - lo.Time)
			sr.Values[i] = lo.Value + f*(hi.Value-lo.Value)
		default:
			sr.Values[i] = math.NaN()
			sr.Missing[i] = true
		}
	}
	return sr
}
