package pricefeed

import (
	"context"
	"sync"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/rpc"

	"go.uber.org/zap"
)

// PollInterval is the fixed time between price fetches.
const PollInterval = 30 * time.Second

// State is the poller's fetch state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Fetcher fetches a price quote for a coin.
type Fetcher interface {
	FetchPriceQuote(ctx context.Context, coinID string) (models.PriceData, error)
}

// CoinGeckoFetcher implements Fetcher using the rpc package.
type CoinGeckoFetcher struct{}

func (CoinGeckoFetcher) FetchPriceQuote(ctx context.Context, coinID string) (models.PriceData, error) {
	return rpc.FetchPriceQuote(ctx, coinID)
}

// Snapshot is what consumers see of the poller.
type Snapshot struct {
	State     State             `json:"state"`
	Quote     models.PriceQuote `json:"quote"`
	HasQuote  bool              `json:"has_quote"`
	Loading   bool              `json:"loading"` // only during the very first fetch
	Stale     bool              `json:"stale"`   // last fetch failed, Quote is from an earlier success
	Err       error             `json:"-"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// QuotePtr returns the quote or nil when none has been fetched.
func (s Snapshot) QuotePtr() *models.PriceQuote {
	if !s.HasQuote {
		return nil
	}
	q := s.Quote
	return &q
}

// Poller periodically fetches a price quote while started.
type Poller struct {
	coinID   string
	fetcher  Fetcher
	interval time.Duration
	log      *zap.Logger

	mu       sync.RWMutex
	snap     Snapshot
	cancel   context.CancelFunc
	gen      int
	onUpdate func(Snapshot)
}

// NewPoller returns an idle poller for coinID.
func NewPoller(coinID string, fetcher Fetcher, log *zap.Logger) *Poller {
	if fetcher == nil {
		fetcher = CoinGeckoFetcher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		coinID:   coinID,
		fetcher:  fetcher,
		interval: PollInterval,
		log:      log,
		snap:     Snapshot{State: StateIdle},
	}
}

// OnUpdate registers fn to be called after every state change. fn runs on the
// poller goroutine, or on the caller of Stop, and must not call Start or Stop.
func (p *Poller) OnUpdate(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Start begins polling: one fetch now, then one per interval. It is a no-op
// while already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	p.log.Info("price poller started", zap.String("coin", p.coinID), zap.Duration("interval", p.interval))
	go p.loop(ctx, gen)
}

// Stop cancels the timer and any in-flight fetch. The last quote is kept; an
// interrupted fetch settles back to the state before it started.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.cancel = nil
	p.gen++

	changed := p.snap.State == StateLoading
	if changed {
		p.snap.Loading = false
		switch {
		case p.snap.Err != nil:
			p.snap.State = StateError
		case p.snap.HasQuote:
			p.snap.State = StateReady
		default:
			p.snap.State = StateIdle
		}
	}
	snap := p.snap
	notify := p.onUpdate
	p.mu.Unlock()

	p.log.Info("price poller stopped", zap.String("coin", p.coinID))
	if changed && notify != nil {
		notify(snap)
	}
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cancel != nil
}

// Snapshot returns the latest state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Poller) loop(ctx context.Context, gen int) {
	p.fetch(ctx, gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.fetch(ctx, gen)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) fetch(ctx context.Context, gen int) {
	if !p.transition(gen, func(s *Snapshot) {
		s.State = StateLoading
		s.Loading = !s.HasQuote
	}) {
		return
	}

	data, err := p.fetcher.FetchPriceQuote(ctx, p.coinID)
	if err == nil {
		err = data.Err
	}
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.log.Warn("price fetch failed", zap.String("coin", p.coinID), zap.Error(err))
		p.transition(gen, func(s *Snapshot) {
			s.State = StateError
			s.Loading = false
			s.Stale = s.HasQuote
			s.Err = err
			s.UpdatedAt = time.Now()
		})
		return
	}

	p.transition(gen, func(s *Snapshot) {
		s.State = StateReady
		s.Quote = data.Quote
		s.HasQuote = true
		s.Loading = false
		s.Stale = false
		s.Err = nil
		s.UpdatedAt = time.Now()
	})
}

// transition applies fn if gen is still the current run and notifies the
// listener. It reports whether the change was applied.
func (p *Poller) transition(gen int, fn func(*Snapshot)) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	fn(&p.snap)
	snap := p.snap
	notify := p.onUpdate
	p.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	return true
}
