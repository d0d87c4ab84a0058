// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/go-daq/acq/log"
	"github.com/go-daq/acq/stats"
)

// Publication interval and batch bounds.
const (
	MinInterval     = 1 * time.Millisecond
	MaxInterval     = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond

	MinBatch     = 1
	MaxBatch     = 10000
	DefaultBatch = 256
)

// SubConfig describes one publication subscription.
type SubConfig struct {
	Interval time.Duration // publication period (0 selects DefaultInterval)
	Max      int           // newest samples per channel and batch (0 selects DefaultBatch)
}

func (cfg *SubConfig) norm() error {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < MinInterval || cfg.Interval > MaxInterval {
		return cfgErr("interval", "%v not in [%v, %v]", cfg.Interval, MinInterval, MaxInterval)
	}
	if cfg.Max == 0 {
		cfg.Max = DefaultBatch
	}
	if cfg.Max < MinBatch || cfg.Max > MaxBatch {
		return cfgErr("batch size", "%d not in [%d, %d]", cfg.Max, MinBatch, MaxBatch)
	}
	return nil
}

// Publisher periodically publishes batches of one session to its
// subscribed observers. Each subscription runs its own loop: a slow
// observer only loses its own batches and never stalls acquisition or
// the other subscribers.
type Publisher struct {
	s   *Session
	msg log.MsgStream

	// engine publication metrics, nil outside Engine.NewPublisher.
	published prometheus.Counter
	dropped   prometheus.Counter

	mu   sync.Mutex
	subs map[int]*subscription
	next int
	done bool
}

type subscription struct {
	cfg  SubConfig
	obs  Observer
	out  chan Batch
	quit chan struct{}
	wg   sync.WaitGroup

	total uint64 // channel total at the previous tick
}

// NewPublisher creates a publisher for the given session.
func NewPublisher(s *Session, msg log.MsgStream) *Publisher {
	if msg == nil {
		msg = log.Default
	}
	return &Publisher{
		s:    s,
		msg:  msg,
		subs: make(map[int]*subscription),
	}
}

// Subscribe registers an observer and starts publishing to it.
// It returns a token for Unsubscribe.
func (p *Publisher) Subscribe(cfg SubConfig, obs Observer) (int, error) {
	if err := cfg.norm(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return 0, xerrors.Errorf("publisher for %q is closed", p.s.ID())
	}

	sub := &subscription{
		cfg:  cfg,
		obs:  obs,
		out:  make(chan Batch, 8),
		quit: make(chan struct{}),
	}
	p.next++
	id := p.next
	p.subs[id] = sub

	sub.wg.Add(2)
	go p.produce(sub)
	go p.deliver(sub)
	return id, nil
}

// Unsubscribe stops publishing to the observer behind the token.
func (p *Publisher) Unsubscribe(id int) error {
	p.mu.Lock()
	sub, ok := p.subs[id]
	delete(p.subs, id)
	p.mu.Unlock()

	if !ok {
		return xerrors.Errorf("unknown subscription %d", id)
	}
	close(sub.quit)
	sub.wg.Wait()
	return nil
}

// Close stops every subscription.
func (p *Publisher) Close() error {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[int]*subscription)
	p.done = true
	p.mu.Unlock()

	for _, sub := range subs {
		close(sub.quit)
		sub.wg.Wait()
	}
	return nil
}

func (p *Publisher) produce(sub *subscription) {
	defer sub.wg.Done()
	defer close(sub.out)

	tick := time.NewTicker(sub.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-sub.quit:
			return
		case <-tick.C:
			batch := p.batch(sub)
			select {
			case sub.out <- batch:
			default:
				if p.dropped != nil {
					p.dropped.Inc()
				}
				p.msg.Debugf("observer of %q too slow, dropping batch", p.s.ID())
			}
		}
	}
}

func (p *Publisher) deliver(sub *subscription) {
	defer sub.wg.Done()

	for batch := range sub.out {
		ctx, cancel := context.WithTimeout(context.Background(), sub.cfg.Interval)
		err := sub.obs.Send(ctx, batch)
		cancel()
		if err != nil {
			p.msg.Warnf("could not publish batch of %q: %+v", p.s.ID(), err)
			continue
		}
		if p.published != nil {
			p.published.Inc()
		}
	}
}

// batch assembles one update from the current session buffers.
func (p *Publisher) batch(sub *subscription) Batch {
	b := Batch{
		ID:    p.s.ID(),
		State: p.s.State().String(),
		Stats: make(map[string]stats.Summary),
		Data: BatchData{
			Values: make(map[string][]float64),
		},
	}

	var (
		newest = 0.0
		total  uint64
	)
	for _, ch := range p.s.Channels() {
		data, err := p.s.Latest(ch, sub.cfg.Max)
		if err != nil {
			continue
		}
		n, err := p.s.Total(ch)
		if err == nil {
			total += n
		}

		xs := make([]float64, len(data))
		for i, smp := range data {
			xs[i] = smp.Value
		}
		b.Data.Values[ch] = xs
		if len(data) > b.Data.Count {
			b.Data.Count = len(data)
			b.Data.Times = make([]float64, len(data))
			for i, smp := range data {
				b.Data.Times[i] = smp.Time
			}
		}
		if len(data) > 0 && data[len(data)-1].Time > newest {
			newest = data[len(data)-1].Time
		}

		if sum, err := stats.Rolling(xs); err == nil {
			b.Stats[ch] = sum
		}
	}

	b.Quality.Total = p.s.Captured()
	b.Quality.RateHz = float64(total-sub.total) / sub.cfg.Interval.Seconds()
	sub.total = total
	if newest > 0 {
		b.Quality.LatencyMS = (Now() - newest) * 1e3
	}
	return b
}
