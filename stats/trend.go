// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats // import "github.com/go-daq/acq/stats"

import (
	"fmt"
	"math"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrendKind classifies the drift of a signal over a snapshot.
type TrendKind uint8

const (
	Stable TrendKind = iota
	RisingTrend
	FallingTrend
	Noisy
)

func (k TrendKind) String() string {
	switch k {
	case Stable:
		return "stable"
	case RisingTrend:
		return "rising"
	case FallingTrend:
		return "falling"
	case Noisy:
		return "noisy"
	default:
		panic(fmt.Errorf("invalid trend kind value %d", uint8(k)))
	}
}

// Trend holds the linear regression of value over time and its
// classification.
type Trend struct {
	Kind      TrendKind `json:"kind"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	Resid     float64   `json:"resid"` // standard deviation of the regression residuals
}

// Classification policy: a snapshot is rising (falling) when the total
// drift predicted by the regression over the snapshot span exceeds
// trendDriftFrac of the value range, stable when within that threshold
// with residuals below trendResidFrac of the signal scale (the larger
// of the absolute mean and the value range), and noisy otherwise.
const (
	trendDriftFrac = 0.1
	trendResidFrac = 0.15
)

// Classify performs a linear regression of xs over ts and classifies
// the trend of the snapshot.
func Classify(ts, xs []float64) (Trend, error) {
	switch {
	case len(xs) == 0:
		return Trend{}, ErrEmpty
	case len(ts) != len(xs):
		return Trend{}, xerrors.Errorf("stats: length mismatch (times=%d, values=%d)", len(ts), len(xs))
	case len(xs) == 1:
		return Trend{Kind: Stable, Intercept: xs[0]}, nil
	}

	alpha, beta := stat.LinearRegression(ts, xs, nil, false)

	var ss float64
	for i, t := range ts {
		r := xs[i] - (alpha + beta*t)
		ss += r * r
	}
	trend := Trend{
		Slope:     beta,
		Intercept: alpha,
		Resid:     math.Sqrt(ss / float64(len(xs))),
	}

	rng := floats.Max(xs) - floats.Min(xs)
	if rng == 0 {
		trend.Kind = Stable
		return trend, nil
	}

	scale := math.Max(math.Abs(stat.Mean(xs, nil)), rng)
	span := ts[len(ts)-1] - ts[0]
	drift := beta * span
	switch {
	case drift > trendDriftFrac*rng:
		trend.Kind = RisingTrend
	case drift < -trendDriftFrac*rng:
		trend.Kind = FallingTrend
	case trend.Resid <= trendResidFrac*scale:
		trend.Kind = Stable
	default:
		trend.Kind = Noisy
	}

	return trend, nil
}
