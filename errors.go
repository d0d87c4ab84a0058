// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrArmTimeout reports a triggered session whose trigger never
	// fired within the configured arm timeout. The session moved to
	// the terminal Error state and needs an explicit reset.
	ErrArmTimeout = xerrors.New("acq: trigger arm timeout")

	// ErrRejected reports a sample that arrived while the session was
	// not accepting data. Rejections are counted, never fatal.
	ErrRejected = xerrors.New("acq: sample rejected")

	// ErrSyncTimeout reports a group member that failed to reach the
	// joint state within the group tolerance window.
	ErrSyncTimeout = xerrors.New("acq: synchronization timeout")

	ErrUnknownSession = xerrors.New("acq: unknown session")
	ErrUnknownGroup   = xerrors.New("acq: unknown group")
	ErrUnknownChannel = xerrors.New("acq: unknown channel")
)

// ConfigError reports an invalid session, group or subscription
// configuration. It is returned at creation time: a session with an
// invalid configuration never starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("acq: invalid configuration: %s: %s", e.Field, e.Reason)
}

func cfgErr(field, format string, a ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, a...)}
}
