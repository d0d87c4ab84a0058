// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flags provides an easy creation of standard flag parameters for acq processes
package flags // import "github.com/go-daq/acq/flags"

import (
	"flag"
	"strconv"
	"strings"

	"github.com/go-daq/acq/config"
	"github.com/go-daq/acq/log"
)

func New() config.Engine {
	var (
		cfg config.Engine
		lvl string
	)

	flag.StringVar(&cfg.Name, "id", "acq", "name of the acq engine process")
	flag.StringVar(&lvl, "lvl", "INFO", "msgstream level")
	flag.StringVar(&cfg.Web, "web", ":8080", "[addr]:port of the HTTP monitoring server")
	flag.StringVar(&cfg.Pub, "pub", "", "mangos pub endpoint for streamed batches (e.g. tcp://:45000)")
	flag.StringVar(&cfg.NATS, "nats", "", "NATS server URL for streamed batches")
	flag.StringVar(&cfg.Subject, "subject", "acq.data", "NATS subject prefix for streamed batches")
	flag.StringVar(&cfg.LogFile, "log-file", "", "path to engine logfile")

	flag.Parse()

	cfg.Args = flag.Args()

	lvl = strings.ToLower(lvl)
	switch {
	case strings.HasPrefix(lvl, "dbg"), strings.HasPrefix(lvl, "debug"):
		cfg.Level = log.LvlDebug
	case strings.HasPrefix(lvl, "info"):
		cfg.Level = log.LvlInfo
	case strings.HasPrefix(lvl, "warn"):
		cfg.Level = log.LvlWarning
	case strings.HasPrefix(lvl, "err"):
		cfg.Level = log.LvlError
	default:
		v, err := strconv.Atoi(lvl)
		if err != nil {
			log.Fatalf("unknown level value %q: %+v", lvl, err)
		}
		cfg.Level = log.Level(v)
	}

	return cfg
}
