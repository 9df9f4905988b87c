// Package connectivity tracks whether the device can reach the remote
// store and notifies subscribers on transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor exposes the current online state and transition notifications.
type Monitor interface {
	IsOnline() bool
	// Subscribe registers a transition listener and returns its
	// unsubscribe handle. The listener receives the new state.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Switch is a Monitor whose state is set explicitly. It backs the prober
// and serves as the test double; the mobile shell can also drive it
// directly from the OS reachability callback.
type Switch struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewSwitch returns a Switch with the given initial state.
func NewSwitch(online bool) *Switch {
	return &Switch{online: online, subs: make(map[int]func(bool))}
}

// IsOnline reports the current state.
func (s *Switch) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Subscribe registers a transition listener.
func (s *Switch) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Set updates the state and notifies subscribers on a transition.
// Setting the same state twice is a no-op.
func (s *Switch) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

// Prober derives the online state by periodically probing the remote store.
type Prober struct {
	*Switch

	probe    func(ctx context.Context) error
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProber builds a Prober around the given reachability check. The
// initial state is offline until the first probe succeeds.
func NewProber(probe func(ctx context.Context) error, interval, timeout time.Duration, logger *zap.Logger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		Switch:   NewSwitch(false),
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start probes immediately, then on every interval tick until Stop or
// context cancellation.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.runProbe(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runProbe(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit.
func (p *Prober) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Prober) runProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.probe(probeCtx)
	online := err == nil
	if online != p.IsOnline() {
		p.logger.Sugar().Infow("connectivity transition", "online", online)
	}
	p.Set(online)
}
