// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command acq-daemon runs an acquisition engine with a web monitor and
// a pair of demo sessions fed by synthetic signal sources.
package main // import "github.com/go-daq/acq/cmd/acq-daemon"

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/go-daq/acq"
	"github.com/go-daq/acq/flags"
	"github.com/go-daq/acq/internal/iomux"
	"github.com/go-daq/acq/log"
	"github.com/go-daq/acq/siggen"
)

func main() {
	cfg := flags.New()

	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			log.Fatalf("could not create log file %q: %+v", cfg.LogFile, err)
		}
		defer f.Close()
		w = io.MultiWriter(os.Stdout, f)
	}
	msg := log.NewMsgStream(cfg.Name, cfg.Level, iomux.NewWriter(w))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, cfg.Web, cfg.Pub, cfg.NATS, cfg.Subject, msg)
	if err != nil {
		msg.Errorf("could not run daemon: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, web, pub, natsURL, subject string, msg log.MsgStream) error {
	eng := acq.NewEngine(msg)

	scope, err := eng.Create(acq.SessionConfig{
		Name:     "demo-scope",
		Mode:     acq.Continuous,
		Rate:     1000,
		Channels: []string{"sine", "noise"},
	})
	if err != nil {
		return err
	}
	meter, err := eng.Create(acq.SessionConfig{
		Name:     "demo-meter",
		Mode:     acq.Continuous,
		Rate:     10,
		Channels: []string{"ramp"},
	})
	if err != nil {
		return err
	}

	grp, err := eng.CreateGroup(acq.GroupConfig{Name: "demo", Master: scope.ID()})
	if err != nil {
		return err
	}
	for _, s := range []*acq.Session{scope, meter} {
		if err := eng.AddToGroup(grp.ID(), s.ID()); err != nil {
			return err
		}
	}
	if err := grp.Start(); err != nil {
		return err
	}

	msg.Infof("demo sessions: scope=%q meter=%q", scope.ID(), meter.ID())

	var sinks []acq.Observer
	if pub != "" {
		sck, err := acq.NewPubSock(pub)
		if err != nil {
			return err
		}
		defer sck.Close()
		sinks = append(sinks, sck)
		msg.Infof("publishing batches on %q", pub)
	}
	if natsURL != "" {
		np, err := acq.NewNATSPub(natsURL, subject)
		if err != nil {
			return err
		}
		defer np.Close()
		sinks = append(sinks, np)
		msg.Infof("publishing batches to NATS at %q", natsURL)
	}

	pubs := make([]*acq.Publisher, 0, len(sinks)*2)
	for _, s := range []*acq.Session{scope, meter} {
		for _, sink := range sinks {
			p, err := eng.NewPublisher(s.ID())
			if err != nil {
				return err
			}
			if _, err := p.Subscribe(acq.SubConfig{}, sink); err != nil {
				return err
			}
			pubs = append(pubs, p)
		}
	}
	defer func() {
		for _, p := range pubs {
			_ = p.Close()
		}
	}()

	grun, ctx := errgroup.WithContext(ctx)

	feed := func(s *acq.Session, ch string, src siggen.Source, rate float64) {
		grun.Go(func() error {
			err := siggen.Feed(ctx, src, rate, func(t, v float64) error {
				errIngest := eng.Ingest(s.ID(), ch, t, v)
				if errIngest != nil {
					msg.Debugf("dropped sample on %q/%q: %+v", s.ID(), ch, errIngest)
				}
				return nil
			})
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	feed(scope, "sine", siggen.Sine{Amp: 1, Freq: 50}, 1000)
	feed(scope, "noise", siggen.Add{
		siggen.Sine{Amp: 0.5, Freq: 50},
		siggen.NewNoise(0.05, 0, 1234),
	}, 1000)
	feed(meter, "ramp", siggen.Ramp{Amp: 10, Freq: 0.1}, 10)

	if web != "" {
		mon := acq.NewWebMon(eng, web, msg)
		grun.Go(func() error { return mon.Run(ctx) })
	}

	return grun.Wait()
}
