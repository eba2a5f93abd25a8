package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"walletfolio/pkg/models"
	"walletfolio/pkg/storage"

	"go.uber.org/zap"
)

// ErrInvalidViewMode is returned by Set for unknown modes.
var ErrInvalidViewMode = errors.New("unknown view mode")

// ViewModeController owns the combined/individual toggle.
type ViewModeController struct {
	mu    sync.RWMutex
	mode  models.ViewMode
	store storage.Store
	log   *zap.Logger
}

// NewViewMode returns a controller in combined mode.
func NewViewMode(store storage.Store, log *zap.Logger) *ViewModeController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewModeController{mode: models.ViewCombined, store: store, log: log}
}

// Load restores the persisted mode. Missing or unrecognized values fall back to combined.
func (c *ViewModeController) Load(ctx context.Context) error {
	raw, err := c.store.Get(ctx, storage.ViewModeKey)
	mode := models.ViewMode(raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = models.ViewCombined

	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		perr := &storage.PersistenceError{Op: "read", Key: storage.ViewModeKey, Err: err}
		c.log.Error("failed to load view mode", zap.Error(perr))
		return perr
	}
	if !mode.Valid() {
		c.log.Warn("ignoring unrecognized view mode", zap.String("value", raw))
		return nil
	}
	c.mode = mode
	return nil
}

func (c *ViewModeController) Mode() models.ViewMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Toggle flips between combined and individual and returns the new mode.
func (c *ViewModeController) Toggle() models.ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = c.mode.Other()
	c.persistLocked()
	return c.mode
}

// Set switches to mode directly.
func (c *ViewModeController) Set(mode models.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewMode, mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.persistLocked()
	return nil
}

func (c *ViewModeController) persistLocked() {
	if err := c.store.Set(context.Background(), storage.ViewModeKey, string(c.mode)); err != nil {
		c.log.Warn("failed to persist view mode",
			zap.Error(&storage.PersistenceError{Op: "write", Key: storage.ViewModeKey, Err: err}))
	}
}
