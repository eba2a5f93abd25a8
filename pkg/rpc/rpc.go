package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"walletfolio/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

var CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
var BalanceTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: 10 * time.Second}

// weiPerEther scales raw balances to ETH.
var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// FetchError reports a failed price fetch. StatusCode is zero for transport failures.
type FetchError struct {
	CoinID     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("price fetch for %s failed with status %d: %v", e.CoinID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("price fetch for %s failed: %v", e.CoinID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchPriceQuote fetches the USD price and 24h change of coinID from CoinGecko.
func FetchPriceQuote(ctx context.Context, coinID string) (models.PriceData, error) {
	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	endpoint := fmt.Sprintf("%s/simple/price?%s", CoinGeckoBaseURL, q.Encode())

	fail := func(status int, err error) (models.PriceData, error) {
		ferr := &FetchError{CoinID: coinID, StatusCode: status, Err: err}
		return models.PriceData{CoinID: coinID, Err: ferr}, ferr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(resp.StatusCode, errors.Errorf("%s: %s", resp.Status, body))
	}

	var result map[string]models.PriceQuote
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fail(resp.StatusCode, errors.Wrap(err, "decode price response"))
	}
	quote, ok := result[coinID]
	if !ok {
		return fail(resp.StatusCode, errors.Errorf("no price for %q in response", coinID))
	}
	return models.PriceData{CoinID: coinID, Quote: quote}, nil
}

// FetchBalance reads the ETH balance of address, trying each RPC URL in turn
// until one answers. Returns the failed URLs alongside the reading.
func FetchBalance(ctx context.Context, rpcURLs []string, address string) (models.BalanceReading, []string, error) {
	var failed []string
	lastErr := errors.New("no RPC URLs configured")
	account := common.HexToAddress(address)

	for _, rpcURL := range rpcURLs {
		cctx, cancel := context.WithTimeout(ctx, BalanceTimeout)
		client, err := ethclient.DialContext(cctx, rpcURL)
		if err != nil {
			cancel()
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}

		wei, err := client.BalanceAt(cctx, account, nil)
		client.Close()
		cancel()
		if err != nil {
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}

		amount := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
		return models.BalanceReading{
			Address:   address,
			Formatted: amount.Text('f', 18),
			Amount:    amount,
			FetchedAt: time.Now(),
		}, failed, nil
	}

	err := errors.Wrapf(lastErr, "balance of %s", address)
	return models.BalanceReading{Address: address, Err: err, FetchedAt: time.Now()}, failed, err
}

// FetchChainID asks a single RPC endpoint for its chain id.
func FetchChainID(ctx context.Context, rpcURL string) (*big.Int, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(cctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	id, err := client.ChainID(cctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chain id")
	}
	return id, nil
}
