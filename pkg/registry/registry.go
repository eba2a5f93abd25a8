package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidAddress is returned by AddWallet for malformed addresses.
var ErrInvalidAddress = errors.New("please enter a valid Ethereum address")

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is 0x followed by 40 hex digits.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// State is a point-in-time copy of the registry.
type State struct {
	Wallets          []models.Wallet `json:"wallets"`
	SelectedWalletID string          `json:"selected_wallet_id"` // empty when nothing is selected
}

// Registry tracks wallets, the primary flag and the selected wallet.
type Registry struct {
	mu       sync.RWMutex
	wallets  []models.Wallet
	selected string

	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

// New creates an empty registry backed by store. Call Load to restore persisted wallets.
func New(store storage.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Load restores the wallet collection from the store. A missing key leaves the
// registry empty. Unreadable data is logged and also leaves it empty.
func (r *Registry) Load(ctx context.Context) error {
	raw, err := r.store.Get(ctx, storage.WalletsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		perr := &storage.PersistenceError{Op: "read", Key: storage.WalletsKey, Err: err}
		r.log.Error("failed to load wallets", zap.Error(perr))
		return perr
	}

	var wallets []models.Wallet
	if err := json.Unmarshal([]byte(raw), &wallets); err != nil {
		perr := &storage.PersistenceError{Op: "decode", Key: storage.WalletsKey, Err: err}
		r.log.Error("failed to decode wallets", zap.Error(perr))
		return perr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets = wallets
	r.selected = ""
	r.enforcePrimary("")
	if p := r.primaryLocked(); p != nil {
		r.selected = p.ID
	}
	r.log.Info("wallets loaded", zap.Int("count", len(r.wallets)), zap.String("selected", r.selected))
	return nil
}

// AddWallet registers a new wallet and selects it. The first wallet becomes primary.
// An empty label defaults to "Wallet N".
func (r *Registry) AddWallet(address, label string) (models.Wallet, error) {
	address = strings.TrimSpace(address)
	if !ValidAddress(address) {
		return models.Wallet{}, ErrInvalidAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(address, label), nil
}

// AddWalletIfAbsent is AddWallet for addresses not yet tracked. When the
// address is already present, ignoring case, the existing wallet is returned
// and created is false.
func (r *Registry) AddWalletIfAbsent(address, label string) (wallet models.Wallet, created bool, err error) {
	address = strings.TrimSpace(address)
	if !ValidAddress(address) {
		return models.Wallet{}, false, ErrInvalidAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if strings.EqualFold(w.Address, address) {
			return w, false, nil
		}
	}
	return r.addLocked(address, label), true, nil
}

func (r *Registry) addLocked(address, label string) models.Wallet {
	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("Wallet %d", len(r.wallets)+1)
	}
	w := models.Wallet{
		ID:        "wallet_" + uuid.NewString(),
		Address:   address,
		Label:     label,
		IsPrimary: len(r.wallets) == 0,
		AddedAt:   r.now().UnixMilli(),
	}
	r.wallets = append(r.wallets, w)
	r.selected = w.ID
	r.enforcePrimary("")
	r.persistLocked()

	r.log.Info("wallet added", zap.String("id", w.ID), zap.String("address", w.Address))
	return w
}

// RemoveWallet deletes the wallet with id. Unknown ids are ignored.
func (r *Registry) RemoveWallet(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return r.stateLocked()
	}
	r.wallets = append(r.wallets[:idx:idx], r.wallets[idx+1:]...)

	if r.selected == id {
		r.selected = ""
		if len(r.wallets) > 0 {
			r.selected = r.wallets[0].ID
		}
	}
	r.enforcePrimary("")
	r.persistLocked()

	r.log.Info("wallet removed", zap.String("id", id), zap.Int("remaining", len(r.wallets)))
	return r.stateLocked()
}

// UpdateWallet applies label and primary changes to the wallet with id.
// Unknown ids are ignored. Blank labels are ignored.
// Setting IsPrimary true clears it on every other wallet. Setting it false is
// ignored: the flag only moves by promoting another wallet.
func (r *Registry) UpdateWallet(id string, upd models.WalletUpdate) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return r.stateLocked()
	}

	preferred := ""
	if upd.Label != nil {
		if label := strings.TrimSpace(*upd.Label); label != "" {
			r.wallets[idx].Label = label
		}
	}
	if upd.IsPrimary != nil && *upd.IsPrimary {
		preferred = id
	}
	r.enforcePrimary(preferred)
	r.persistLocked()
	return r.stateLocked()
}

// SetPrimaryWallet makes id the primary wallet. Calling it for the current primary is a no-op.
func (r *Registry) SetPrimaryWallet(id string) State {
	primary := true
	return r.UpdateWallet(id, models.WalletUpdate{IsPrimary: &primary})
}

// SelectWallet changes the selection. The id is not checked; an unknown id
// makes SelectedWallet report nothing.
func (r *Registry) SelectWallet(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
	return r.stateLocked()
}

// Wallet looks up a wallet by id.
func (r *Registry) Wallet(id string) (models.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexLocked(id)
	if idx < 0 {
		return models.Wallet{}, false
	}
	return r.wallets[idx], true
}

// FindByAddress looks up a wallet by address, ignoring case.
func (r *Registry) FindByAddress(address string) (models.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if strings.EqualFold(w.Address, address) {
			return w, true
		}
	}
	return models.Wallet{}, false
}

// PrimaryWallet returns the primary wallet, falling back to the first one.
func (r *Registry) PrimaryWallet() (models.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.primaryLocked(); p != nil {
		return *p, true
	}
	return models.Wallet{}, false
}

// SelectedWallet returns the selected wallet, if the selection refers to a known wallet.
func (r *Registry) SelectedWallet() (models.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexLocked(r.selected)
	if idx < 0 {
		return models.Wallet{}, false
	}
	return r.wallets[idx], true
}

// Wallets returns the wallets in insertion order.
func (r *Registry) Wallets() []models.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Wallet(nil), r.wallets...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

// State returns a snapshot of the registry.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked()
}

// enforcePrimary restores the exactly-one-primary invariant. A non-empty
// preferred id takes the flag; otherwise the first flagged wallet keeps it,
// or the first wallet gets it when none is flagged.
func (r *Registry) enforcePrimary(preferred string) {
	if len(r.wallets) == 0 {
		return
	}
	keep := -1
	if preferred != "" {
		keep = r.indexLocked(preferred)
	}
	if keep < 0 {
		for i, w := range r.wallets {
			if w.IsPrimary {
				keep = i
				break
			}
		}
	}
	if keep < 0 {
		keep = 0
	}
	for i := range r.wallets {
		r.wallets[i].IsPrimary = i == keep
	}
}

func (r *Registry) persistLocked() {
	ctx := context.Background()
	if len(r.wallets) == 0 {
		if err := r.store.Delete(ctx, storage.WalletsKey); err != nil {
			r.log.Warn("failed to clear persisted wallets",
				zap.Error(&storage.PersistenceError{Op: "delete", Key: storage.WalletsKey, Err: err}))
		}
		return
	}
	data, err := json.Marshal(r.wallets)
	if err != nil {
		r.log.Error("failed to encode wallets", zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, storage.WalletsKey, string(data)); err != nil {
		r.log.Warn("failed to persist wallets",
			zap.Error(&storage.PersistenceError{Op: "write", Key: storage.WalletsKey, Err: err}))
	}
}

func (r *Registry) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, w := range r.wallets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) primaryLocked() *models.Wallet {
	for i := range r.wallets {
		if r.wallets[i].IsPrimary {
			return &r.wallets[i]
		}
	}
	if len(r.wallets) > 0 {
		return &r.wallets[0]
	}
	return nil
}

func (r *Registry) stateLocked() State {
	return State{
		Wallets:          append([]models.Wallet(nil), r.wallets...),
		SelectedWalletID: r.selected,
	}
}
