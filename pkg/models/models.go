package models

import (
	"math/big"
	"time"
)

// Wallet is one tracked account address plus its display metadata.
type Wallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Label     string `json:"label"`
	IsPrimary bool   `json:"isPrimary"`
	AddedAt   int64  `json:"addedAt"` // Unix milliseconds
}

// AddedTime returns AddedAt as a time.Time.
func (w Wallet) AddedTime() time.Time {
	return time.UnixMilli(w.AddedAt)
}

// WalletUpdate holds the editable fields of a wallet. Nil fields are left untouched.
type WalletUpdate struct {
	Label     *string `json:"label,omitempty"`
	IsPrimary *bool   `json:"is_primary,omitempty"`
}

// ViewMode selects how balances are aggregated for display.
type ViewMode string

const (
	ViewCombined   ViewMode = "combined"
	ViewIndividual ViewMode = "individual"
)

// Valid reports whether v is one of the known view modes.
func (v ViewMode) Valid() bool {
	return v == ViewCombined || v == ViewIndividual
}

// Other returns the opposite view mode.
func (v ViewMode) Other() ViewMode {
	if v == ViewIndividual {
		return ViewCombined
	}
	return ViewIndividual
}

// PriceQuote is a USD unit price and its 24h percentage change.
type PriceQuote struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
}

// PriceData contains the result of a price fetch for a coin.
type PriceData struct {
	CoinID string
	Quote  PriceQuote
	Err    error
}

// BalanceReading is a live balance observation for one address.
type BalanceReading struct {
	Address   string     `json:"address"`
	Formatted string     `json:"formatted"` // ETH amount as a decimal string
	Amount    *big.Float `json:"-"`
	FetchedAt time.Time  `json:"fetched_at"`
	Err       error      `json:"-"`
}

// Ok reports whether the reading carries a usable amount.
func (r BalanceReading) Ok() bool {
	return r.Err == nil && r.Amount != nil
}

// WalletValuation is the derived figures for a single wallet.
type WalletValuation struct {
	WalletID   string  `json:"wallet_id"`
	Address    string  `json:"address"`
	Label      string  `json:"label"`
	IsPrimary  bool    `json:"is_primary"`
	IsSelected bool    `json:"is_selected"`
	HasBalance bool    `json:"has_balance"`
	Balance    float64 `json:"balance"`
	ValueUSD   float64 `json:"value_usd"`
}

// Valuation is the aggregate display figures for the current view mode.
type Valuation struct {
	Mode         ViewMode          `json:"mode"`
	Balance      float64           `json:"balance"`
	ValueUSD     float64           `json:"value_usd"`
	PriceUSD     float64           `json:"price_usd"`
	Change24hPct float64           `json:"change_24h_pct"`
	Change24hUSD float64           `json:"change_24h_usd"`
	HasPrice     bool              `json:"has_price"`
	Wallets      []WalletValuation `json:"wallets"`
}

// ChainResult holds test results for an RPC endpoint set.
type ChainResult struct {
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID int64  `json:"chain_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath      string      `json:"config_path"`
	ValidStructure  bool        `json:"valid_structure"`
	StructureErrors []string    `json:"structure_errors,omitempty"`
	StorageBackend  string      `json:"storage_backend"`
	WalletCount     int         `json:"wallet_count"`
	Chain           ChainResult `json:"chain"`
	PriceStatus     string      `json:"price_status"`
	PriceUSD        float64     `json:"price_usd,omitempty"`
	PriceError      string      `json:"price_error,omitempty"`
}
