// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command acq-shell drives a local acquisition engine from an
// interactive prompt.
package main // import "github.com/go-daq/acq/cmd/acq-shell"

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/xerrors"

	"github.com/go-daq/acq"
	"github.com/go-daq/acq/log"
	"github.com/go-daq/acq/siggen"
)

func main() {
	msg := log.NewMsgStream("acq-shell", log.LvlInfo, os.Stdout)
	sh := newShell(msg)
	defer sh.Close()

	err := sh.run()
	if err != nil {
		msg.Errorf("could not run shell: %+v", err)
		os.Exit(1)
	}
}

type shell struct {
	eng   *acq.Engine
	msg   log.MsgStream
	term  *liner.State
	feeds map[string]context.CancelFunc
}

func newShell(msg log.MsgStream) *shell {
	sh := &shell{
		eng:   acq.NewEngine(msg),
		msg:   msg,
		term:  liner.NewLiner(),
		feeds: make(map[string]context.CancelFunc),
	}
	sh.term.SetCtrlCAborts(true)
	sh.term.SetCompleter(func(line string) []string {
		var o []string
		for _, cmd := range []string{
			"new ", "ls", "start ", "stop ", "pause ", "resume ",
			"reset ", "fire ", "feed ", "stat ", "help", "quit",
		} {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				o = append(o, cmd)
			}
		}
		return o
	})
	return sh
}

func (sh *shell) Close() error {
	for _, stop := range sh.feeds {
		stop()
	}
	return sh.term.Close()
}

func (sh *shell) run() error {
	fmt.Println("acq shell. type 'help' for help, 'quit' to leave.")
	for {
		line, err := sh.term.Prompt("acq> ")
		switch err {
		case nil:
			// ok
		case io.EOF, liner.ErrPromptAborted:
			fmt.Println("")
			return nil
		default:
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.term.AppendHistory(line)

		if line == "quit" || line == "exit" {
			return nil
		}
		err = sh.dispatch(strings.Fields(line))
		if err != nil {
			fmt.Printf("error: %+v\n", err)
		}
	}
}

func (sh *shell) dispatch(args []string) error {
	switch cmd := args[0]; cmd {
	case "help":
		fmt.Print(shellHelp)
		return nil
	case "new":
		return sh.cmdNew(args[1:])
	case "ls":
		return sh.cmdList()
	case "start", "stop", "pause", "resume", "reset", "fire":
		return sh.cmdCtl(cmd, args[1:])
	case "feed":
		return sh.cmdFeed(args[1:])
	case "stat":
		return sh.cmdStat(args[1:])
	default:
		return xerrors.Errorf("unknown command %q", cmd)
	}
}

func (sh *shell) cmdNew(args []string) error {
	if len(args) < 3 {
		return xerrors.New("usage: new <name> <rate> <channel> [channel...]")
	}
	rate, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return xerrors.Errorf("invalid rate %q: %w", args[1], err)
	}
	s, err := sh.eng.Create(acq.SessionConfig{
		Name:     args[0],
		Mode:     acq.Continuous,
		Rate:     rate,
		Channels: args[2:],
	})
	if err != nil {
		return err
	}
	fmt.Printf("created session %s\n", s.ID())
	return nil
}

func (sh *shell) cmdList() error {
	for _, s := range sh.eng.Sessions() {
		fmt.Printf("%s  %-10s %-16s captured=%d rejected=%d\n",
			s.ID(), s.State(), s.Name(), s.Captured(), s.Rejected(),
		)
	}
	return nil
}

func (sh *shell) cmdCtl(cmd string, args []string) error {
	if len(args) != 1 {
		return xerrors.Errorf("usage: %s <session-id>", cmd)
	}
	s, err := sh.eng.Session(args[0])
	if err != nil {
		return err
	}
	switch cmd {
	case "start":
		return s.Start()
	case "stop":
		if stop, ok := sh.feeds[s.ID()]; ok {
			stop()
			delete(sh.feeds, s.ID())
		}
		return s.Stop()
	case "pause":
		return s.Pause()
	case "resume":
		return s.Resume()
	case "reset":
		return s.Reset()
	case "fire":
		return s.Fire()
	}
	panic("impossible")
}

// cmdFeed pumps a synthetic sine into one channel of a session until
// the session is stopped.
func (sh *shell) cmdFeed(args []string) error {
	if len(args) != 2 {
		return xerrors.New("usage: feed <session-id> <channel>")
	}
	s, err := sh.eng.Session(args[0])
	if err != nil {
		return err
	}
	if _, ok := sh.feeds[s.ID()]; ok {
		return xerrors.Errorf("session %q is already fed", s.ID())
	}

	ctx, cancel := context.WithCancel(context.Background())
	sh.feeds[s.ID()] = cancel

	ch := args[1]
	src := siggen.Add{
		siggen.Sine{Amp: 1, Freq: 10},
		siggen.NewNoise(0.05, 0, 1234),
	}
	go func() {
		err := siggen.Feed(ctx, src, s.Config().Rate, func(t, v float64) error {
			errIngest := sh.eng.Ingest(s.ID(), ch, t, v)
			if errIngest != nil {
				sh.msg.Debugf("dropped sample: %+v", errIngest)
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			sh.msg.Errorf("feed of %q failed: %+v", s.ID(), err)
		}
	}()
	return nil
}

func (sh *shell) cmdStat(args []string) error {
	if len(args) < 3 {
		return xerrors.New("usage: stat <session-id> <channel> <kind>")
	}
	v, err := sh.eng.Statistics(args[0], args[1], args[2], acq.StatParams{})
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", v)
	return nil
}

const shellHelp = `commands:
  new <name> <rate> <channel>...   create a continuous session
  ls                               list sessions
  start|stop|pause|resume|reset|fire <session-id>
  feed <session-id> <channel>      pump a synthetic signal into a channel
  stat <session-id> <channel> <kind>
                                   kind: rolling, spectrum, trend,
                                   quality, peaks, crossings
  quit                             leave the shell
`
