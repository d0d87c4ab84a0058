// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"bytes"
	"context"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"
	"golang.org/x/xerrors"

	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// PubSock publishes batches on a mangos PUB socket. Messages are
// topic-prefixed with the session id and a zero byte, followed by the
// batch wire encoding, so subscribers can filter per session.
type PubSock struct {
	sck mangos.Socket
	lis mangos.Listener
}

// NewPubSock creates a PUB socket listening on ep, e.g. "tcp://:40990"
// or "ipc:///tmp/acq.pub".
func NewPubSock(ep string) (*PubSock, error) {
	sck, lis, err := makeListener(pub.NewSocket, ep)
	if err != nil {
		return nil, xerrors.Errorf("could not setup pub socket: %w", err)
	}
	return &PubSock{sck: sck, lis: lis}, nil
}

func (p *PubSock) Send(_ context.Context, b Batch) error {
	buf := new(bytes.Buffer)
	buf.WriteString(b.ID)
	buf.WriteByte(0)
	if err := SendMsg(buf, b); err != nil {
		return err
	}
	if err := p.sck.Send(buf.Bytes()); err != nil {
		return xerrors.Errorf("could not publish batch of %q: %w", b.ID, err)
	}
	return nil
}

func (p *PubSock) Close() error {
	if err := p.lis.Close(); err != nil {
		_ = p.sck.Close()
		return err
	}
	return p.sck.Close()
}

// SubSock receives batches published by a PubSock.
type SubSock struct {
	sck mangos.Socket
}

// NewSubSock dials a batch publisher at ep. A non-empty session id
// narrows the subscription to that session.
func NewSubSock(ep, id string) (*SubSock, error) {
	sck, err := sub.NewSocket()
	if err != nil {
		return nil, xerrors.Errorf("could not create sub socket: %w", err)
	}
	err = sck.SetOption(mangos.OptionSubscribe, []byte(id))
	if err != nil {
		_ = sck.Close()
		return nil, xerrors.Errorf("could not subscribe to %q: %w", id, err)
	}
	err = sck.Dial(ep)
	if err != nil {
		_ = sck.Close()
		return nil, xerrors.Errorf("could not dial %q: %w", ep, err)
	}
	return &SubSock{sck: sck}, nil
}

// Recv blocks for the next batch.
func (s *SubSock) Recv() (Batch, error) {
	var b Batch
	raw, err := s.sck.Recv()
	if err != nil {
		return b, xerrors.Errorf("could not receive batch: %w", err)
	}
	i := bytes.IndexByte(raw, 0)
	if i < 0 {
		return b, xerrors.Errorf("malformed batch message (no topic separator)")
	}
	err = RecvMsg(bytes.NewReader(raw[i+1:]), &b)
	if err != nil {
		return b, err
	}
	return b, nil
}

func (s *SubSock) Close() error { return s.sck.Close() }

func makeListener(fun func() (mangos.Socket, error), ep string) (mangos.Socket, mangos.Listener, error) {
	sck, err := fun()
	if err != nil {
		return nil, nil, xerrors.Errorf("could not create socket %q: %w", ep, err)
	}

	lis, err := sck.NewListener(ep, nil)
	if err != nil {
		_ = sck.Close()
		return nil, nil, xerrors.Errorf("could not create listener %q: %w", ep, err)
	}

	err = lis.Listen()
	if err != nil {
		_ = lis.Close()
		_ = sck.Close()
		return nil, nil, xerrors.Errorf("could not listen on %q: %w", ep, err)
	}

	return sck, lis, nil
}
