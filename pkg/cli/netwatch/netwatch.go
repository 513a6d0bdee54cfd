/* Copyright 2025 LogYourBody Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package netwatch provides the online/offline signal that drives sync
package netwatch

import (
	"context"
	"sync"
	"time"
)

// Monitor reports connectivity and notifies subscribers on transitions
type Monitor interface {
	// IsOnline returns the last observed connectivity state
	IsOnline() bool
	// Subscribe registers a callback invoked on every online/offline
	// transition. It returns an unsubscribe function.
	Subscribe(fn func(online bool)) func()
	// Close stops the monitor. Subscribers receive no further calls.
	Close()
}

// notifier is the subscriber bookkeeping shared by monitor implementations
type notifier struct {
	mu      sync.Mutex
	subs    map[int]func(online bool)
	nextID  int
	online  bool
	started bool
}

func newNotifier(online bool) *notifier {
	return &notifier{subs: map[int]func(online bool){}, online: online}
}

func (n *notifier) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) Subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// set records the new state and notifies subscribers if it changed
func (n *notifier) set(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online

	fns := make([]func(online bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Probe polls the server's health endpoint at an interval and derives
// connectivity from the result
type Probe struct {
	*notifier

	ping     func(ctx context.Context) error
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewProbe returns a monitor that considers the device online while the
// given ping function succeeds. The first probe runs immediately.
func NewProbe(ping func(ctx context.Context) error, interval time.Duration) *Probe {
	p := &Probe{
		notifier: newNotifier(false),
		ping:     ping,
		interval: interval,
		timeout:  10 * time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	p.check()
	go p.run()

	return p
}

func (p *Probe) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.check()
		case <-p.stop:
			return
		}
	}
}

func (p *Probe) check() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.set(p.ping(ctx) == nil)
}

// Close stops the probe loop. Idempotent.
func (p *Probe) Close() {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
	})
}

// Manual is a monitor whose state is set by the caller. It is used in tests
// and in environments that supply their own connectivity signal.
type Manual struct {
	*notifier
}

// NewManual returns a manual monitor with the given initial state
func NewManual(online bool) *Manual {
	return &Manual{notifier: newNotifier(online)}
}

// SetOnline records the connectivity state, notifying subscribers on change
func (m *Manual) SetOnline(online bool) {
	m.set(online)
}

// Close is a no-op for a manual monitor
func (m *Manual) Close() {}
