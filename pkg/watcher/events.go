package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventPriceUpdated     EventType = "price_updated"
	EventBalancesUpdated  EventType = "balances_updated"
	EventWalletsChanged   EventType = "wallets_changed"
	EventViewModeChanged  EventType = "view_mode_changed"
	EventValuationUpdated EventType = "valuation_updated"
	EventDisconnected     EventType = "disconnected"
)

// Event represents a portfolio change.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
