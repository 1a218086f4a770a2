package monitor

import (
	"context"
	"sync"
	"time"
)

// ConnectivityProvider reports whether the remote side is reachable and
// notifies subscribers on transitions. Implementations differ per
// platform; the engine only depends on this capability.
type ConnectivityProvider interface {
	IsOnline() bool
	Subscribe(callback func(online bool))
}

// FlagProvider is a manually driven provider: tests and embedders flip
// the flag, subscribers hear about transitions.
type FlagProvider struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func NewFlagProvider(online bool) *FlagProvider {
	return &FlagProvider{online: online}
}

func (p *FlagProvider) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *FlagProvider) Subscribe(callback func(online bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, callback)
}

// SetOnline flips the flag. Subscribers are notified only on an actual
// transition, synchronously.
func (p *FlagProvider) SetOnline(online bool) {
	p.mu.Lock()
	if p.online == online {
		p.mu.Unlock()
		return
	}
	p.online = online
	subs := append(([]func(bool))(nil), p.subs...)
	p.mu.Unlock()

	for _, sub := range subs {
		sub(online)
	}
}

// ProbeProvider derives connectivity from a periodic health probe
// (typically a ping against the remote store).
type ProbeProvider struct {
	flag     *FlagProvider
	probe    func(ctx context.Context) error
	interval time.Duration
}

func NewProbeProvider(probe func(ctx context.Context) error, interval time.Duration) *ProbeProvider {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProbeProvider{
		flag:     NewFlagProvider(false),
		probe:    probe,
		interval: interval,
	}
}

func (p *ProbeProvider) IsOnline() bool {
	return p.flag.IsOnline()
}

func (p *ProbeProvider) Subscribe(callback func(online bool)) {
	p.flag.Subscribe(callback)
}

// Start probes immediately, then on the interval, until ctx is done.
func (p *ProbeProvider) Start(ctx context.Context) {
	p.check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *ProbeProvider) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	p.flag.SetOnline(p.probe(probeCtx) == nil)
}
