package valuation

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"walletfolio/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletA = models.Wallet{ID: "wallet_a", Address: "0x" + strings.Repeat("A", 40), Label: "A", IsPrimary: true}
	walletB = models.Wallet{ID: "wallet_b", Address: "0x" + strings.Repeat("b", 40), Label: "B"}
	walletC = models.Wallet{ID: "wallet_c", Address: "0x" + strings.Repeat("c", 40), Label: "C"}
)

func reading(address, formatted string) models.BalanceReading {
	return models.BalanceReading{Address: address, Formatted: formatted}
}

func TestCompute_CombinedOnlyConnectedHasBalance(t *testing.T) {
	in := Input{
		Wallets:          []models.Wallet{walletA, walletB, walletC},
		SelectedWalletID: walletA.ID,
		Mode:             models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletB.Address): reading(walletB.Address, "1.5"),
		},
		Quote: &models.PriceQuote{USD: 2000, USD24hChange: 5},
	}

	v := Compute(in)
	assert.Equal(t, 1.5, v.Balance)
	assert.Equal(t, 3000.0, v.ValueUSD)
	assert.Equal(t, 150.0, v.Change24hUSD)
	assert.True(t, v.HasPrice)

	require.Len(t, v.Wallets, 3)
	assert.False(t, v.Wallets[0].HasBalance)
	assert.Equal(t, 0.0, v.Wallets[0].ValueUSD)
	assert.True(t, v.Wallets[1].HasBalance)
	assert.Equal(t, 3000.0, v.Wallets[1].ValueUSD)
	assert.True(t, v.Wallets[0].IsSelected)
	assert.True(t, v.Wallets[0].IsPrimary)
}

func TestCompute_CombinedSumsAllReadings(t *testing.T) {
	in := Input{
		Wallets: []models.Wallet{walletA, walletB, walletC},
		Mode:    models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletA.Address): reading(walletA.Address, "1.25"),
			BalanceKey(walletB.Address): reading(walletB.Address, "0.75"),
			BalanceKey(walletC.Address): {Address: walletC.Address, Err: errors.New("rpc down")},
		},
		Quote: &models.PriceQuote{USD: 1000, USD24hChange: -10},
	}

	v := Compute(in)
	assert.Equal(t, 2.0, v.Balance)
	assert.Equal(t, 2000.0, v.ValueUSD)
	assert.Equal(t, -200.0, v.Change24hUSD)
	assert.False(t, v.Wallets[2].HasBalance)
}

func TestCompute_Individual(t *testing.T) {
	balances := map[string]models.BalanceReading{
		BalanceKey(walletA.Address): reading(walletA.Address, "1"),
		BalanceKey(walletB.Address): reading(walletB.Address, "3"),
	}
	quote := &models.PriceQuote{USD: 10, USD24hChange: 2}

	tests := []struct {
		name     string
		selected string
		balances map[string]models.BalanceReading
		want     float64
	}{
		{"selected wallet only", walletB.ID, balances, 3},
		{"nothing selected", "", balances, 0},
		{"unknown selection", "wallet_gone", balances, 0},
		{"selected without reading", walletC.ID, balances, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Compute(Input{
				Wallets:          []models.Wallet{walletA, walletB, walletC},
				SelectedWalletID: tt.selected,
				Mode:             models.ViewIndividual,
				Balances:         tt.balances,
				Quote:            quote,
			})
			assert.Equal(t, tt.want, v.Balance)
			assert.Equal(t, tt.want*10, v.ValueUSD)
			assert.Equal(t, models.ViewIndividual, v.Mode)
		})
	}
}

func TestCompute_NoQuote(t *testing.T) {
	v := Compute(Input{
		Wallets: []models.Wallet{walletA},
		Mode:    models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletA.Address): reading(walletA.Address, "4"),
		},
	})
	assert.Equal(t, 4.0, v.Balance)
	assert.Equal(t, 0.0, v.ValueUSD)
	assert.Equal(t, 0.0, v.Change24hUSD)
	assert.False(t, v.HasPrice)
}

func TestCompute_Empty(t *testing.T) {
	v := Compute(Input{Mode: models.ViewCombined, Quote: &models.PriceQuote{USD: 3000}})
	assert.Equal(t, 0.0, v.Balance)
	assert.Equal(t, 0.0, v.ValueUSD)
	assert.NotNil(t, v.Wallets)
}

func TestCompute_AmountWithoutFormatted(t *testing.T) {
	v := Compute(Input{
		Wallets: []models.Wallet{walletA},
		Mode:    models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletA.Address): {Address: walletA.Address, Amount: big.NewFloat(0.5)},
		},
		Quote: &models.PriceQuote{USD: 100},
	})
	assert.Equal(t, 50.0, v.ValueUSD)
}

func TestCompute_UnparseableFormatted(t *testing.T) {
	v := Compute(Input{
		Wallets: []models.Wallet{walletA},
		Mode:    models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletA.Address): reading(walletA.Address, "1.2 ETH"),
		},
		Quote: &models.PriceQuote{USD: 100},
	})
	assert.Equal(t, 0.0, v.Balance)
	assert.False(t, v.Wallets[0].HasBalance)
}

func TestCompute_Unrounded(t *testing.T) {
	v := Compute(Input{
		Wallets: []models.Wallet{walletA},
		Mode:    models.ViewCombined,
		Balances: map[string]models.BalanceReading{
			BalanceKey(walletA.Address): reading(walletA.Address, "0.123456789012345678"),
		},
		Quote: &models.PriceQuote{USD: 1, USD24hChange: 1},
	})
	assert.InDelta(t, 0.123456789012345678, v.ValueUSD, 1e-15)
	assert.InDelta(t, 0.00123456789012345678, v.Change24hUSD, 1e-17)
}
