// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats // import "github.com/go-daq/acq/stats"

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Grade is the composite quality grade of a snapshot.
type Grade uint8

const (
	Excellent Grade = iota
	Good
	Fair
	Poor
)

func (g Grade) String() string {
	switch g {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Fair:
		return "fair"
	case Poor:
		return "poor"
	default:
		panic(fmt.Errorf("invalid grade value %d", uint8(g)))
	}
}

// QualityPolicy holds the tunable thresholds of the quality grading.
// The grade boundaries are policy, not physics; they are pinned by the
// test suite, not by a hard contract.
type QualityPolicy struct {
	OutlierK       float64 // outlier distance in standard deviations
	ExcellentBelow float64 // composite score upper bound for "excellent"
	GoodBelow      float64 // composite score upper bound for "good"
	FairBelow      float64 // composite score upper bound for "fair"
}

// DefaultQualityPolicy returns the default grading policy.
func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{
		OutlierK:       3,
		ExcellentBelow: 0.05,
		GoodBelow:      0.15,
		FairBelow:      0.35,
	}
}

// Quality is the composite quality assessment of a snapshot.
type Quality struct {
	Grade     Grade   `json:"grade"`
	Noise     float64 `json:"noise"`     // std/|mean|, or std when the mean vanishes
	Stability float64 `json:"stability"` // variance of a short rolling mean, range-normalized
	Outliers  int     `json:"outliers"`  // samples beyond OutlierK standard deviations
	Score     float64 `json:"score"`     // composite the grade is derived from
}

// rolling-mean window used by the stability estimate.
const stabilityWin = 10

// Assess grades the snapshot xs against the policy pol.
//
// The composite score is 0.5*noise + 0.3*stability + 0.2*(10*outlier
// fraction), each term clamped to 1.
func Assess(xs []float64, pol QualityPolicy) (Quality, error) {
	if len(xs) == 0 {
		return Quality{}, ErrEmpty
	}
	if pol.OutlierK <= 0 {
		pol.OutlierK = DefaultQualityPolicy().OutlierK
	}

	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}

	var q Quality
	switch {
	case math.Abs(mean) > 1e-9:
		q.Noise = std / math.Abs(mean)
	default:
		q.Noise = std
	}

	rng := floats.Max(xs) - floats.Min(xs)
	if win := stabilityWin; len(xs) > win && rng > 0 {
		means := make([]float64, 0, len(xs)-win+1)
		for i := 0; i+win <= len(xs); i++ {
			means = append(means, stat.Mean(xs[i:i+win], nil))
		}
		q.Stability = stat.Variance(means, nil) / (rng * rng)
	}

	if std > 0 {
		for _, v := range xs {
			if math.Abs(v-mean) > pol.OutlierK*std {
				q.Outliers++
			}
		}
	}
	frac := float64(q.Outliers) / float64(len(xs))

	q.Score = 0.5*clamp01(q.Noise) + 0.3*clamp01(q.Stability) + 0.2*clamp01(10*frac)
	switch {
	case q.Score < pol.ExcellentBelow:
		q.Grade = Excellent
	case q.Score < pol.GoodBelow:
		q.Grade = Good
	case q.Score < pol.FairBelow:
		q.Grade = Fair
	default:
		q.Grade = Poor
	}

	return q, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
