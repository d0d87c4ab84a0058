// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"golang.org/x/xerrors"
)

// NATSPub publishes batches as JSON on a NATS subject hierarchy, one
// subject per session: <prefix>.<session-id>.
type NATSPub struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPub connects to a NATS server, e.g. nats.DefaultURL.
func NewNATSPub(url, subject string) (*NATSPub, error) {
	if subject == "" {
		subject = "acq.batches"
	}
	conn, err := nats.Connect(url, nats.Name("acq-publisher"))
	if err != nil {
		return nil, xerrors.Errorf("could not connect to NATS at %q: %w", url, err)
	}
	return &NATSPub{conn: conn, subject: subject}, nil
}

func (p *NATSPub) Send(_ context.Context, b Batch) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return xerrors.Errorf("could not marshal batch of %q: %w", b.ID, err)
	}
	err = p.conn.Publish(p.subject+"."+b.ID, raw)
	if err != nil {
		return xerrors.Errorf("could not publish batch of %q: %w", b.ID, err)
	}
	return nil
}

func (p *NATSPub) Close() error {
	err := p.conn.Flush()
	p.conn.Close()
	return err
}
