// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats computes derived quantities over acquisition snapshots.
//
// All functions are pure: they operate on a snapshot of sample values
// (and, where relevant, their timestamps) and never mutate their inputs.
// An empty snapshot is signaled with ErrEmpty, never silently folded
// into a zero-valued result.
package stats // import "github.com/go-daq/acq/stats"

import (
	"math"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when statistics are requested over an empty snapshot.
var ErrEmpty = xerrors.New("stats: empty snapshot")

// Summary holds the rolling statistics of a snapshot.
type Summary struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	RMS  float64 `json:"rms"`
	PkPk float64 `json:"pk_pk"`
}

// Rolling computes the rolling statistics of the snapshot xs.
func Rolling(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, ErrEmpty
	}

	var sum Summary
	sum.N = len(xs)
	sum.Mean = stat.Mean(xs, nil)
	if sum.N > 1 {
		sum.Std = stat.StdDev(xs, nil)
	}
	sum.Min = floats.Min(xs)
	sum.Max = floats.Max(xs)
	sum.PkPk = sum.Max - sum.Min

	var ss float64
	for _, v := range xs {
		ss += v * v
	}
	sum.RMS = math.Sqrt(ss / float64(sum.N))

	return sum, nil
}
