package valuation

import (
	"math/big"
	"strings"

	"walletfolio/pkg/models"

	"github.com/shopspring/decimal"
)

// Input is everything the valuation depends on.
type Input struct {
	Wallets          []models.Wallet
	SelectedWalletID string
	Mode             models.ViewMode
	Balances         map[string]models.BalanceReading // Key: lower-cased address
	Quote            *models.PriceQuote               // nil when no quote has been fetched yet
}

// BalanceKey normalizes an address for use as a Balances key.
func BalanceKey(address string) string {
	return strings.ToLower(address)
}

// Compute derives the display figures for in.Mode. Missing or failed balance
// readings count as zero; so does a missing quote.
func Compute(in Input) models.Valuation {
	price := 0.0
	change := 0.0
	if in.Quote != nil {
		price = in.Quote.USD
		change = in.Quote.USD24hChange
	}

	out := models.Valuation{
		Mode:         in.Mode,
		PriceUSD:     price,
		Change24hPct: change,
		HasPrice:     in.Quote != nil,
		Wallets:      make([]models.WalletValuation, 0, len(in.Wallets)),
	}

	total := new(big.Float)
	for _, w := range in.Wallets {
		bal, ok := balanceOf(in.Balances, w.Address)
		wv := models.WalletValuation{
			WalletID:   w.ID,
			Address:    w.Address,
			Label:      w.Label,
			IsPrimary:  w.IsPrimary,
			IsSelected: w.ID == in.SelectedWalletID,
			HasBalance: ok,
		}
		if ok {
			wv.Balance, _ = bal.Float64()
			wv.ValueUSD = wv.Balance * price
		}
		out.Wallets = append(out.Wallets, wv)

		if !ok {
			continue
		}
		switch in.Mode {
		case models.ViewIndividual:
			if wv.IsSelected {
				total.Add(total, bal)
			}
		default:
			total.Add(total, bal)
		}
	}

	out.Balance, _ = total.Float64()
	out.ValueUSD = out.Balance * price
	out.Change24hUSD = out.ValueUSD * change / 100
	return out
}

// balanceOf returns the parsed ETH amount of a usable reading for address.
func balanceOf(balances map[string]models.BalanceReading, address string) (*big.Float, bool) {
	r, ok := balances[BalanceKey(address)]
	if !ok || r.Err != nil {
		return nil, false
	}
	if r.Formatted != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(r.Formatted))
		if err != nil {
			return nil, false
		}
		f, ok := new(big.Float).SetString(d.String())
		return f, ok
	}
	if r.Amount != nil {
		return new(big.Float).Copy(r.Amount), true
	}
	return nil, false
}
