package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRPCServer fakes an Ethereum JSON-RPC endpoint answering eth_getBalance and eth_chainId.
func newRPCServer(t *testing.T, balanceHex, chainIDHex string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int           `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_getBalance":
			result = balanceHex
		case "eth_chainId":
			result = chainIDHex
		default:
			result = "0x0"
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func withCoinGecko(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(h)
	originalURL := CoinGeckoBaseURL
	CoinGeckoBaseURL = server.URL
	t.Cleanup(func() {
		CoinGeckoBaseURL = originalURL
		server.Close()
	})
}

func TestFetchPriceQuote(t *testing.T) {
	withCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "true", r.URL.Query().Get("include_24hr_change"))
		_, _ = w.Write([]byte(`{"ethereum":{"usd":2500.5,"usd_24h_change":-3.25}}`))
	})

	data, err := FetchPriceQuote(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", data.CoinID)
	assert.Equal(t, 2500.5, data.Quote.USD)
	assert.Equal(t, -3.25, data.Quote.USD24hChange)
}

func TestFetchPriceQuote_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ethereum":`))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "coin missing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withCoinGecko(t, tt.handler)

			data, err := FetchPriceQuote(context.Background(), "ethereum")
			require.Error(t, err)
			var ferr *FetchError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, tt.wantStatus, ferr.StatusCode)
			assert.Equal(t, err, data.Err)
		})
	}
}

func TestFetchPriceQuote_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	originalURL := CoinGeckoBaseURL
	CoinGeckoBaseURL = server.URL
	defer func() { CoinGeckoBaseURL = originalURL }()
	server.Close()

	_, err := FetchPriceQuote(context.Background(), "ethereum")
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 0, ferr.StatusCode)
}

func TestFetchBalance(t *testing.T) {
	// 2.5 ETH
	server := newRPCServer(t, "0x22B1C8C1227A0000", "0x1")

	reading, failed, err := FetchBalance(context.Background(), []string{server.URL}, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.True(t, reading.Ok())
	f, _ := reading.Amount.Float64()
	assert.Equal(t, 2.5, f)
	assert.Equal(t, "2.500000000000000000", reading.Formatted)
}

func TestFetchBalance_Failover(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := newRPCServer(t, "0xde0b6b3a7640000", "0x1") // 1 ETH

	reading, failed, err := FetchBalance(context.Background(), []string{bad.URL, good.URL}, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.NoError(t, err)
	assert.Equal(t, []string{bad.URL}, failed)
	f, _ := reading.Amount.Float64()
	assert.Equal(t, 1.0, f)
}

func TestFetchBalance_AllFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	reading, failed, err := FetchBalance(context.Background(), []string{bad.URL}, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.Error(t, err)
	assert.Len(t, failed, 1)
	assert.False(t, reading.Ok())
	assert.Equal(t, err, reading.Err)

	_, _, err = FetchBalance(context.Background(), nil, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	assert.Error(t, err)
}

func TestFetchChainID(t *testing.T) {
	server := newRPCServer(t, "0x0", "0xa")

	id, err := FetchChainID(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id.Int64())
}
