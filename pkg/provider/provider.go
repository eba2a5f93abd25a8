package provider

import (
	"context"
	"sync"

	"walletfolio/pkg/models"
	"walletfolio/pkg/rpc"

	"go.uber.org/zap"
)

// Provider is the wallet connection the portfolio reads from.
type Provider interface {
	CurrentAddress() string
	IsConnected() bool
	BalanceOf(ctx context.Context, address string) (models.BalanceReading, error)
	Disconnect()
}

// RPCProvider reads balances from Ethereum JSON-RPC endpoints. The connected
// account is the address configured at startup; disconnecting forgets it but
// balance queries for tracked wallets keep working.
type RPCProvider struct {
	mu        sync.RWMutex
	rpcURLs   []string
	address   string
	connected bool
	log       *zap.Logger
}

// NewRPCProvider returns a provider connected as address. An empty address
// leaves it disconnected.
func NewRPCProvider(rpcURLs []string, address string, log *zap.Logger) *RPCProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCProvider{
		rpcURLs:   append([]string(nil), rpcURLs...),
		address:   address,
		connected: address != "",
		log:       log,
	}
}

func (p *RPCProvider) CurrentAddress() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected {
		return ""
	}
	return p.address
}

func (p *RPCProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// BalanceOf reads the ETH balance for any address, trying RPC URLs in order.
func (p *RPCProvider) BalanceOf(ctx context.Context, address string) (models.BalanceReading, error) {
	p.mu.RLock()
	urls := p.rpcURLs
	p.mu.RUnlock()

	reading, failed, err := rpc.FetchBalance(ctx, urls, address)
	for _, u := range failed {
		p.log.Debug("rpc endpoint failed", zap.String("url", u), zap.String("address", address))
	}
	if err != nil {
		p.log.Warn("balance fetch failed", zap.String("address", address), zap.Error(err))
	}
	return reading, err
}

func (p *RPCProvider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		p.log.Info("wallet disconnected", zap.String("address", p.address))
	}
	p.connected = false
	p.address = ""
}
