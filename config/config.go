// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config describes how acquisition engine processes are configured.
package config // import "github.com/go-daq/acq/config"

import (
	"github.com/go-daq/acq/log"
)

// Engine describes how an acquisition engine process should be configured.
type Engine struct {
	Name  string    // name of the engine process
	Level log.Level // verbosity level of the engine process

	Web     string // address of the HTTP monitoring server ("" disables it)
	Pub     string // mangos pub endpoint for streamed batches ("" disables it)
	NATS    string // NATS server URL for streamed batches ("" disables it)
	Subject string // NATS subject prefix for streamed batches

	LogFile string // path to logfile ("" disables it)

	Args []string // additional flag arguments
}
