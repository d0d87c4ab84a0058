// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats // import "github.com/go-daq/acq/stats"

import (
	"sort"

	"golang.org/x/xerrors"
)

// Peak is a detected local maximum.
type Peak struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Peaks detects local maxima of xs with a prominence of at least minProm
// and a pairwise separation of at least minSep samples. Peaks are
// returned in temporal order. When two candidates are closer than
// minSep, the higher one wins.
func Peaks(ts, xs []float64, minProm float64, minSep int) ([]Peak, error) {
	switch {
	case len(xs) == 0:
		return nil, ErrEmpty
	case len(ts) != len(xs):
		return nil, xerrors.Errorf("stats: length mismatch (times=%d, values=%d)", len(ts), len(xs))
	}
	if minSep < 1 {
		minSep = 1
	}

	var cands []Peak
	for i := 1; i < len(xs)-1; i++ {
		if !(xs[i] > xs[i-1] && xs[i] >= xs[i+1]) {
			continue
		}
		if prominence(xs, i) < minProm {
			continue
		}
		cands = append(cands, Peak{Index: i, Time: ts[i], Value: xs[i]})
	}

	// enforce the minimum separation, highest peaks first.
	sort.Slice(cands, func(i, j int) bool { return cands[i].Value > cands[j].Value })
	var peaks []Peak
	for _, c := range cands {
		ok := true
		for _, p := range peaks {
			if abs(c.Index-p.Index) < minSep {
				ok = false
				break
			}
		}
		if ok {
			peaks = append(peaks, c)
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Index < peaks[j].Index })

	return peaks, nil
}

// prominence is the height of xs[i] above the higher of the two minima
// separating it from the nearest greater values (or the snapshot edges).
func prominence(xs []float64, i int) float64 {
	left := xs[i]
	for j := i - 1; j >= 0; j-- {
		if xs[j] > xs[i] {
			break
		}
		if xs[j] < left {
			left = xs[j]
		}
	}
	right := xs[i]
	for j := i + 1; j < len(xs); j++ {
		if xs[j] > xs[i] {
			break
		}
		if xs[j] < right {
			right = xs[j]
		}
	}
	base := left
	if right > base {
		base = right
	}
	return xs[i] - base
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Crossing is a directional crossing of a threshold level.
type Crossing struct {
	Index  int     `json:"index"`
	Time   float64 `json:"time"`
	Upward bool    `json:"upward"`
}

// Crossings returns every index where xs crosses level, in temporal
// order. The crossing rule mirrors the trigger rule: upward when
// prev < level <= cur, downward when prev >= level > cur, so a flat
// signal sitting on the level reports no crossing.
func Crossings(ts, xs []float64, level float64) ([]Crossing, error) {
	switch {
	case len(xs) == 0:
		return nil, ErrEmpty
	case len(ts) != len(xs):
		return nil, xerrors.Errorf("stats: length mismatch (times=%d, values=%d)", len(ts), len(xs))
	}

	var crossings []Crossing
	for i := 1; i < len(xs); i++ {
		prev, cur := xs[i-1], xs[i]
		switch {
		case prev < level && cur >= level:
			crossings = append(crossings, Crossing{Index: i, Time: ts[i], Upward: true})
		case prev >= level && cur < level:
			crossings = append(crossings, Crossing{Index: i, Time: ts[i], Upward: false})
		}
	}
	return crossings, nil
}
