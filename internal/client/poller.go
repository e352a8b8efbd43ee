package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// pollInterval is how often an anonymous client re-fetches the newest page
// while the chat UI is open.
const pollInterval = 3 * time.Second

// Poller drives the pull delivery path. It runs only while the chat UI is
// open; Stop halts it and no further requests go out.
type Poller struct {
	syncer   *Syncer
	interval time.Duration

	// OnNewMessages, when set, receives the count of genuinely new messages
	// after each productive poll (unread badges and the like).
	OnNewMessages func(count int)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(syncer *Syncer) *Poller {
	return &Poller{syncer: syncer, interval: pollInterval}
}

// Start begins polling. Starting an already running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(ctx)
}

// Stop halts polling. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			added, err := p.syncer.Poll(ctx)
			if err != nil {
				// Polling is self-healing: log and wait for the next tick.
				log.Warn().Err(err).Msg("poll failed")
				continue
			}
			if added > 0 && p.OnNewMessages != nil {
				p.OnNewMessages(added)
			}
		}
	}
}
