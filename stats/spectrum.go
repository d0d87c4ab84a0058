// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats // import "github.com/go-daq/acq/stats"

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Window selects the tapering function applied before the transform.
type Window uint8

const (
	Rectangular Window = iota
	Hann
	Hamming
	Blackman
	Bartlett
)

func (w Window) String() string {
	switch w {
	case Rectangular:
		return "rectangular"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	case Bartlett:
		return "bartlett"
	default:
		panic(fmt.Errorf("invalid window value %d", uint8(w)))
	}
}

// WindowByName maps a window name to its Window value.
func WindowByName(name string) (Window, bool) {
	switch name {
	case "rectangular", "":
		return Rectangular, true
	case "hann":
		return Hann, true
	case "hamming":
		return Hamming, true
	case "blackman":
		return Blackman, true
	case "bartlett":
		return Bartlett, true
	}
	return Rectangular, false
}

func (w Window) apply(xs []float64) []float64 {
	switch w {
	case Rectangular:
		return window.Rectangular(xs)
	case Hann:
		return window.Hann(xs)
	case Hamming:
		return window.Hamming(xs)
	case Blackman:
		return window.Blackman(xs)
	case Bartlett:
		// the Bartlett window is gonum's zero-ended triangular window.
		return window.Triangular(xs)
	default:
		panic(fmt.Errorf("invalid window value %d", uint8(w)))
	}
}

// Spectrum summarizes the discrete transform of a snapshot.
type Spectrum struct {
	Rate       float64   `json:"rate_hz"`      // sampling rate the snapshot was taken at
	Power      []float64 `json:"power"`        // per-bin power, DC first
	Dominant   int       `json:"dominant_bin"` // dominant non-DC bin
	DominantHz float64   `json:"dominant_hz"`  // frequency of the dominant bin
	THD        float64   `json:"thd"`          // harmonic energy over fundamental energy
	SNR        float64   `json:"snr"`          // fundamental peak power over noise-floor power
}

// Spectral computes the spectral summary of the snapshot xs, sampled at
// rate Hz, after applying the window win.
//
// THD is estimated as the ratio of the summed power in the harmonics of
// the dominant bin to the power of the dominant bin itself. SNR is the
// ratio of the dominant bin power to the mean power of the bins outside
// the detected fundamental and harmonic peaks.
func Spectral(xs []float64, rate float64, win Window) (Spectrum, error) {
	if len(xs) == 0 {
		return Spectrum{}, ErrEmpty
	}

	data := make([]float64, len(xs))
	copy(data, xs)
	win.apply(data)

	fft := fourier.NewFFT(len(data))
	coeffs := fft.Coefficients(nil, data)

	sp := Spectrum{
		Rate:  rate,
		Power: make([]float64, len(coeffs)),
	}
	norm := 1 / float64(len(data))
	for i, c := range coeffs {
		mod := cmplx.Abs(c) * norm
		sp.Power[i] = mod * mod
	}

	if len(sp.Power) < 2 {
		return sp, nil
	}

	// dominant bin, ignoring DC.
	sp.Dominant = 1
	for i := 2; i < len(sp.Power); i++ {
		if sp.Power[i] > sp.Power[sp.Dominant] {
			sp.Dominant = i
		}
	}
	sp.DominantHz = fft.Freq(sp.Dominant) * rate

	fund := sp.Power[sp.Dominant]
	if fund == 0 {
		return sp, nil
	}

	peaks := map[int]bool{sp.Dominant: true}
	var harm float64
	for k := 2; ; k++ {
		i := k * sp.Dominant
		if i >= len(sp.Power) {
			break
		}
		harm += sp.Power[i]
		peaks[i] = true
	}
	sp.THD = harm / fund

	// noise floor: everything outside DC, the fundamental and its
	// harmonics (each widened by one bin of spectral leakage).
	var (
		noise float64
		n     int
	)
	for i := 1; i < len(sp.Power); i++ {
		if peaks[i] || peaks[i-1] || peaks[i+1] {
			continue
		}
		noise += sp.Power[i]
		n++
	}
	if n > 0 && noise > 0 {
		sp.SNR = fund / (noise / float64(n))
	} else {
		sp.SNR = math.Inf(1)
	}

	return sp, nil
}
