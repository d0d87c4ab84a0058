// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/go-daq/acq/stats"
)

// Marshaler is the interface implemented by types that can encode
// themselves onto the acq wire format.
type Marshaler interface {
	MarshalACQ(enc *Encoder)
}

// Unmarshaler is the interface implemented by types that can decode
// themselves from the acq wire format.
type Unmarshaler interface {
	UnmarshalACQ(dec *Decoder)
}

// Encoder writes little-endian acq wire data. The first I/O error is
// sticky: subsequent writes are dropped and Err reports it.
type Encoder struct {
	w   io.Writer
	err error
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 8)}
}

func (enc *Encoder) Err() error { return enc.err }

func (enc *Encoder) store(n int) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(enc.buf[:n])
}

func (enc *Encoder) WriteBool(v bool) {
	var u uint8
	if v {
		u = 1
	}
	enc.WriteU8(u)
}

func (enc *Encoder) WriteU8(v uint8) {
	enc.buf[0] = v
	enc.store(1)
}

func (enc *Encoder) WriteU32(v uint32) {
	binary.LittleEndian.PutUint32(enc.buf[:4], v)
	enc.store(4)
}

func (enc *Encoder) WriteU64(v uint64) {
	binary.LittleEndian.PutUint64(enc.buf[:8], v)
	enc.store(8)
}

func (enc *Encoder) WriteF64(v float64) {
	binary.LittleEndian.PutUint64(enc.buf[:8], math.Float64bits(v))
	enc.store(8)
}

func (enc *Encoder) WriteStr(v string) {
	enc.WriteU64(uint64(len(v)))
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write([]byte(v))
}

func (enc *Encoder) WriteF64s(vs []float64) {
	enc.WriteU64(uint64(len(vs)))
	for _, v := range vs {
		enc.WriteF64(v)
	}
}

// Decoder reads little-endian acq wire data. The first I/O error is
// sticky: subsequent reads return zero values and Err reports it.
type Decoder struct {
	r   io.Reader
	err error
	buf []byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 8)}
}

func (dec *Decoder) Err() error { return dec.err }

func (dec *Decoder) load(n int) {
	if dec.err != nil {
		copy(dec.buf, []byte{0, 0, 0, 0, 0, 0, 0, 0})
		return
	}
	_, dec.err = io.ReadFull(dec.r, dec.buf[:n])
}

func (dec *Decoder) ReadBool() bool {
	return dec.ReadU8() == 1
}

func (dec *Decoder) ReadU8() uint8 {
	dec.load(1)
	return dec.buf[0]
}

func (dec *Decoder) ReadU32() uint32 {
	dec.load(4)
	return binary.LittleEndian.Uint32(dec.buf[:4])
}

func (dec *Decoder) ReadU64() uint64 {
	dec.load(8)
	return binary.LittleEndian.Uint64(dec.buf[:8])
}

func (dec *Decoder) ReadF64() float64 {
	dec.load(8)
	return math.Float64frombits(binary.LittleEndian.Uint64(dec.buf[:8]))
}

func (dec *Decoder) ReadStr() string {
	n := dec.ReadU64()
	if n == 0 || dec.err != nil {
		return ""
	}
	str := make([]byte, n)
	_, dec.err = io.ReadFull(dec.r, str)
	return string(str)
}

func (dec *Decoder) ReadF64s() []float64 {
	n := dec.ReadU64()
	if n == 0 || dec.err != nil {
		return nil
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = dec.ReadF64()
	}
	return vs
}

func (smp Sample) MarshalACQ(enc *Encoder) {
	enc.WriteF64(smp.Time)
	enc.WriteF64(smp.Value)
}

func (smp *Sample) UnmarshalACQ(dec *Decoder) {
	smp.Time = dec.ReadF64()
	smp.Value = dec.ReadF64()
}

func (b Batch) MarshalACQ(enc *Encoder) {
	enc.WriteStr(b.ID)
	enc.WriteStr(b.State)

	chans := make([]string, 0, len(b.Stats))
	for ch := range b.Stats {
		chans = append(chans, ch)
	}
	sort.Strings(chans)
	enc.WriteU64(uint64(len(chans)))
	for _, ch := range chans {
		sum := b.Stats[ch]
		enc.WriteStr(ch)
		enc.WriteU64(uint64(sum.N))
		enc.WriteF64(sum.Mean)
		enc.WriteF64(sum.Std)
		enc.WriteF64(sum.Min)
		enc.WriteF64(sum.Max)
		enc.WriteF64(sum.RMS)
		enc.WriteF64(sum.PkPk)
	}

	enc.WriteF64s(b.Data.Times)
	chans = chans[:0]
	for ch := range b.Data.Values {
		chans = append(chans, ch)
	}
	sort.Strings(chans)
	enc.WriteU64(uint64(len(chans)))
	for _, ch := range chans {
		enc.WriteStr(ch)
		enc.WriteF64s(b.Data.Values[ch])
	}
	enc.WriteU32(uint32(b.Data.Count))

	enc.WriteF64(b.Quality.RateHz)
	enc.WriteF64(b.Quality.LatencyMS)
	enc.WriteU64(b.Quality.Total)
}

func (b *Batch) UnmarshalACQ(dec *Decoder) {
	b.ID = dec.ReadStr()
	b.State = dec.ReadStr()

	n := dec.ReadU64()
	if n > 0 {
		b.Stats = make(map[string]stats.Summary, n)
		for i := uint64(0); i < n; i++ {
			ch := dec.ReadStr()
			var sum stats.Summary
			sum.N = int(dec.ReadU64())
			sum.Mean = dec.ReadF64()
			sum.Std = dec.ReadF64()
			sum.Min = dec.ReadF64()
			sum.Max = dec.ReadF64()
			sum.RMS = dec.ReadF64()
			sum.PkPk = dec.ReadF64()
			b.Stats[ch] = sum
		}
	}

	b.Data.Times = dec.ReadF64s()
	n = dec.ReadU64()
	if n > 0 {
		b.Data.Values = make(map[string][]float64, n)
		for i := uint64(0); i < n; i++ {
			ch := dec.ReadStr()
			b.Data.Values[ch] = dec.ReadF64s()
		}
	}
	b.Data.Count = int(dec.ReadU32())

	b.Quality.RateHz = dec.ReadF64()
	b.Quality.LatencyMS = dec.ReadF64()
	b.Quality.Total = dec.ReadU64()
}

// SendMsg writes one length-prefixed frame holding the wire encoding
// of msg.
func SendMsg(w io.Writer, msg Marshaler) error {
	var buf frame
	enc := NewEncoder(&buf)
	msg.MarshalACQ(enc)
	if err := enc.Err(); err != nil {
		return errors.Wrap(err, "could not encode message")
	}

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(buf)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "could not send frame header")
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "could not send frame payload")
	}
	return nil
}

// RecvMsg reads one length-prefixed frame and decodes it into msg.
func RecvMsg(r io.Reader, msg Unmarshaler) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(err, "could not receive frame header")
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return errors.Wrap(err, "could not receive frame payload")
	}

	dec := NewDecoder(bytes.NewReader(raw))
	msg.UnmarshalACQ(dec)
	return errors.Wrap(dec.Err(), "could not decode message")
}

type frame []byte

func (f *frame) Write(p []byte) (int, error) {
	*f = append(*f, p...)
	return len(p), nil
}
