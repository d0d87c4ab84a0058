// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsm // import "github.com/go-daq/acq/fsm"

import (
	"fmt"
)

// Status describes the current status of an acquisition session or group.
type Status uint8

const (
	Idle    Status = iota // created, not acquiring; the only state where the trigger may be replaced
	Waiting               // armed, waiting for the trigger condition
	Running               // acquiring samples
	Paused                // acquisition suspended, ingestion dropped
	Stopped               // acquisition ended
	Error                 // unrecoverable fault, needs an explicit reset
)

func (st Status) String() string {
	switch st {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting-trigger"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		panic(fmt.Errorf("invalid status value %d", uint8(st)))
	}
}

// Terminal reports whether st requires an explicit reset before reuse.
func (st Status) Terminal() bool {
	return st == Stopped || st == Error
}
