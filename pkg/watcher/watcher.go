package watcher

import (
	"context"
	"sync"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/pricefeed"
	"walletfolio/pkg/provider"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/valuation"

	"go.uber.org/zap"
)

// BalanceInterval is the time between balance refreshes of all tracked wallets.
const BalanceInterval = 30 * time.Second

// MainWalletLabel is the label given to the connected account when it is
// registered automatically.
const MainWalletLabel = "Main Wallet"

const maxHistory = 120

// Snapshot is the complete session state handed to the TUI and the API.
type Snapshot struct {
	Wallets          []models.Wallet                  `json:"wallets"`
	SelectedWalletID string                           `json:"selected_wallet_id"`
	ViewMode         models.ViewMode                  `json:"view_mode"`
	ConnectedAddress string                           `json:"connected_address"`
	Price            pricefeed.Snapshot               `json:"price"`
	PriceError       string                           `json:"price_error,omitempty"`
	Balances         map[string]models.BalanceReading `json:"balances"`
	BalanceErrors    map[string]string                `json:"balance_errors,omitempty"`
	Valuation        models.Valuation                 `json:"valuation"`
	History          []float64                        `json:"history"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

// Watcher owns the portfolio session: the wallet registry, the view mode,
// the price poller and the balance refresh loop.
type Watcher struct {
	registry *registry.Registry
	viewMode *registry.ViewModeController
	poller   *pricefeed.Poller
	provider provider.Provider
	log      *zap.Logger

	balanceInterval time.Duration

	balances    map[string]models.BalanceReading
	history     []float64
	subscribers []Subscriber
	runCtx      context.Context
	cancel      context.CancelFunc
	updatedAt   time.Time
	mu          sync.RWMutex

	// serializes poller start/stop decisions
	syncMu sync.Mutex
}

// NewWatcher creates a new Watcher instance. The registry and view mode must
// already be loaded.
func NewWatcher(reg *registry.Registry, vm *registry.ViewModeController, poller *pricefeed.Poller, prov provider.Provider, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		registry:        reg,
		viewMode:        vm,
		poller:          poller,
		provider:        prov,
		log:             log,
		balanceInterval: BalanceInterval,
		balances:        make(map[string]models.BalanceReading),
	}
	poller.OnUpdate(w.onPrice)
	return w
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			w.log.Debug("subscriber full, dropping event", zap.String("type", string(event.Type)))
		}
	}
}

// Start registers the connected account, starts the price poller when there
// are wallets and begins the balance loop.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	w.runCtx, w.cancel = context.WithCancel(ctx)
	runCtx := w.runCtx
	w.mu.Unlock()

	w.registerConnected()
	w.syncPoller()
	go w.balanceLoop(runCtx)
}

// Stop stops the balance loop and the price poller.
func (w *Watcher) Stop() {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.cancel = nil
	w.runCtx = nil
	w.mu.Unlock()
	w.poller.Stop()
}

func (w *Watcher) registerConnected() {
	if w.provider == nil || !w.provider.IsConnected() {
		return
	}
	addr := w.provider.CurrentAddress()
	if _, created, err := w.AddWallet(addr, MainWalletLabel); err != nil {
		w.log.Warn("connected address rejected", zap.String("address", addr), zap.Error(err))
	} else if created {
		w.log.Info("registered connected wallet", zap.String("address", addr))
	}
}

// syncPoller keeps the price poller running exactly while wallets exist.
func (w *Watcher) syncPoller() {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	w.mu.RLock()
	ctx := w.runCtx
	w.mu.RUnlock()

	if ctx != nil && w.registry.Len() > 0 {
		w.poller.Start(ctx)
		return
	}
	w.poller.Stop()
}

func (w *Watcher) balanceLoop(ctx context.Context) {
	w.RefreshBalances(ctx)

	ticker := time.NewTicker(w.balanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RefreshBalances(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RefreshBalances reads the balance of every tracked wallet. A failed read is
// recorded on that wallet's reading only.
func (w *Watcher) RefreshBalances(ctx context.Context) {
	wallets := w.registry.Wallets()
	if w.provider == nil || len(wallets) == 0 {
		w.pruneBalances()
		return
	}

	var wg sync.WaitGroup
	for _, wallet := range wallets {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			w.fetchBalance(ctx, address)
		}(wallet.Address)
	}
	wg.Wait()
	if ctx.Err() != nil {
		return
	}

	w.pruneBalances()
	w.notify(Event{Type: EventBalancesUpdated, Data: w.balancesCopy()})
	w.publishValuation(true)
}

func (w *Watcher) fetchBalance(ctx context.Context, address string) {
	reading, err := w.provider.BalanceOf(ctx, address)
	if ctx.Err() != nil {
		return
	}
	reading.Address = address
	if err != nil {
		reading.Err = err
	}
	if reading.FetchedAt.IsZero() {
		reading.FetchedAt = time.Now()
	}

	w.mu.Lock()
	w.balances[valuation.BalanceKey(address)] = reading
	w.updatedAt = time.Now()
	w.mu.Unlock()
}

// pruneBalances drops readings of wallets that are no longer tracked.
func (w *Watcher) pruneBalances() {
	keep := make(map[string]bool)
	for _, wallet := range w.registry.Wallets() {
		keep[valuation.BalanceKey(wallet.Address)] = true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for k := range w.balances {
		if !keep[k] {
			delete(w.balances, k)
		}
	}
}

func (w *Watcher) onPrice(s pricefeed.Snapshot) {
	w.notify(Event{Type: EventPriceUpdated, Data: s})
	if s.State == pricefeed.StateReady {
		w.publishValuation(true)
	}
}

// AddWallet tracks address. If the address is already tracked the existing
// wallet is returned and created is false.
func (w *Watcher) AddWallet(address, label string) (wallet models.Wallet, created bool, err error) {
	wallet, created, err = w.registry.AddWalletIfAbsent(address, label)
	if err != nil || !created {
		return wallet, created, err
	}
	w.afterMutation()

	w.mu.RLock()
	ctx := w.runCtx
	w.mu.RUnlock()
	if ctx != nil {
		go w.refreshOne(ctx, wallet.Address)
	}
	return wallet, true, nil
}

func (w *Watcher) refreshOne(ctx context.Context, address string) {
	if w.provider == nil {
		return
	}
	w.fetchBalance(ctx, address)
	if ctx.Err() != nil {
		return
	}
	w.notify(Event{Type: EventBalancesUpdated, Data: w.balancesCopy()})
	w.publishValuation(true)
}

// RemoveWallet stops tracking the wallet with id.
func (w *Watcher) RemoveWallet(id string) registry.State {
	st := w.registry.RemoveWallet(id)
	w.pruneBalances()
	w.afterMutation()
	return st
}

// UpdateWallet changes a wallet's label or primary flag.
func (w *Watcher) UpdateWallet(id string, upd models.WalletUpdate) registry.State {
	st := w.registry.UpdateWallet(id, upd)
	w.afterMutation()
	return st
}

// SetPrimaryWallet makes id the primary wallet.
func (w *Watcher) SetPrimaryWallet(id string) registry.State {
	st := w.registry.SetPrimaryWallet(id)
	w.afterMutation()
	return st
}

// SelectWallet changes the selected wallet.
func (w *Watcher) SelectWallet(id string) registry.State {
	st := w.registry.SelectWallet(id)
	w.afterMutation()
	return st
}

// ToggleViewMode flips between combined and individual view.
func (w *Watcher) ToggleViewMode() models.ViewMode {
	mode := w.viewMode.Toggle()
	w.notify(Event{Type: EventViewModeChanged, Data: mode})
	w.publishValuation(false)
	return mode
}

// SetViewMode sets the view mode explicitly.
func (w *Watcher) SetViewMode(mode models.ViewMode) error {
	if err := w.viewMode.Set(mode); err != nil {
		return err
	}
	w.notify(Event{Type: EventViewModeChanged, Data: mode})
	w.publishValuation(false)
	return nil
}

// Disconnect drops the connected account. Tracked wallets, including the one
// registered on connect, stay tracked. It reports whether an account was
// connected.
func (w *Watcher) Disconnect() bool {
	if w.provider == nil || !w.provider.IsConnected() {
		return false
	}
	addr := w.provider.CurrentAddress()
	w.provider.Disconnect()
	w.log.Info("disconnected", zap.String("address", addr))
	w.notify(Event{Type: EventDisconnected, Data: addr})
	return true
}

func (w *Watcher) afterMutation() {
	w.syncPoller()
	w.notify(Event{Type: EventWalletsChanged, Data: w.registry.State()})
	w.publishValuation(false)
}

// publishValuation recomputes the valuation and broadcasts it. record adds
// the total value to the history when a price is known.
func (w *Watcher) publishValuation(record bool) models.Valuation {
	v := w.compute()
	if record && v.HasPrice {
		w.mu.Lock()
		w.history = append(w.history, v.ValueUSD)
		if len(w.history) > maxHistory {
			w.history = w.history[len(w.history)-maxHistory:]
		}
		w.mu.Unlock()
	}
	w.notify(Event{Type: EventValuationUpdated, Data: v})
	return v
}

func (w *Watcher) compute() models.Valuation {
	st := w.registry.State()
	price := w.poller.Snapshot()
	return valuation.Compute(valuation.Input{
		Wallets:          st.Wallets,
		SelectedWalletID: st.SelectedWalletID,
		Mode:             w.viewMode.Mode(),
		Balances:         w.balancesCopy(),
		Quote:            price.QuotePtr(),
	})
}

func (w *Watcher) balancesCopy() map[string]models.BalanceReading {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make(map[string]models.BalanceReading, len(w.balances))
	for k, v := range w.balances {
		cp[k] = v
	}
	return cp
}

// Valuation returns the current display figures.
func (w *Watcher) Valuation() models.Valuation {
	return w.compute()
}

// Snapshot returns a copy of the whole session state.
func (w *Watcher) Snapshot() Snapshot {
	st := w.registry.State()
	price := w.poller.Snapshot()
	balances := w.balancesCopy()

	s := Snapshot{
		Wallets:          st.Wallets,
		SelectedWalletID: st.SelectedWalletID,
		ViewMode:         w.viewMode.Mode(),
		Price:            price,
		Balances:         balances,
		Valuation: valuation.Compute(valuation.Input{
			Wallets:          st.Wallets,
			SelectedWalletID: st.SelectedWalletID,
			Mode:             w.viewMode.Mode(),
			Balances:         balances,
			Quote:            price.QuotePtr(),
		}),
	}
	if w.provider != nil {
		s.ConnectedAddress = w.provider.CurrentAddress()
	}
	if price.Err != nil {
		s.PriceError = price.Err.Error()
	}
	for k, r := range balances {
		if r.Err != nil {
			if s.BalanceErrors == nil {
				s.BalanceErrors = make(map[string]string)
			}
			s.BalanceErrors[k] = r.Err.Error()
		}
	}

	w.mu.RLock()
	s.History = append([]float64(nil), w.history...)
	s.UpdatedAt = w.updatedAt
	w.mu.RUnlock()
	return s
}

// Wallet looks up a tracked wallet by id.
func (w *Watcher) Wallet(id string) (models.Wallet, bool) {
	return w.registry.Wallet(id)
}
