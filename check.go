package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"walletfolio/pkg/config"
	"walletfolio/pkg/models"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/rpc"
	"walletfolio/pkg/utils"
)

// runCheck tests the configuration at path and prints a report to out.
// It returns false when anything the dashboard depends on is broken.
func runCheck(ctx context.Context, cfg config.Config, path string, out io.Writer, jsonOut bool) bool {
	printf := func(format string, a ...interface{}) {
		if !jsonOut {
			fmt.Fprintf(out, format, a...)
		}
	}

	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		StorageBackend: cfg.Storage.Backend,
	}
	ok := true

	printf("Testing configuration file: %s\n", path)
	if errs := cfg.Validate(); len(errs) > 0 {
		report.ValidStructure = false
		report.StructureErrors = errs
		ok = false
		printf("Configuration structure: INVALID\n")
		for _, e := range errs {
			printf(" - %s\n", e)
		}
	} else {
		printf("Configuration structure: VALID\n")
	}

	printf("\nStorage (%s): ", cfg.Storage.Backend)
	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		ok = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		printf("FAILED (%v)\n", err)
	} else {
		reg := registry.New(store, nil)
		if err := reg.Load(ctx); err != nil {
			printf("unreadable wallet list (%v) ", err)
		}
		report.WalletCount = reg.Len()
		printf("%d wallets tracked\n", report.WalletCount)
		_ = closeStore()
	}

	printf("\nChecking RPC endpoints:\n")
	var observed *big.Int
	healthy := 0
	for _, url := range cfg.RPCURLs {
		res := models.RPCResult{URL: url}
		printf(" - %s: ", url)
		id, err := rpc.FetchChainID(ctx, url)
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
			printf("FAILED (%v)\n", err)
			report.Chain.RPCs = append(report.Chain.RPCs, res)
			continue
		}
		healthy++
		res.Status = "ok"
		res.ChainID = id.Int64()
		printf("OK (ChainID: %s)", id.String())
		if observed == nil {
			observed = id
			report.Chain.ObservedChainID = id.Int64()
		} else if observed.Cmp(id) != 0 {
			printf(" - WARNING: ChainID mismatch with previous RPC (%s)", observed.String())
			report.Chain.Inconsistent = true
		}
		printf("\n")
		report.Chain.RPCs = append(report.Chain.RPCs, res)
	}
	if len(cfg.RPCURLs) > 0 && healthy == 0 {
		ok = false
	}
	if report.Chain.Inconsistent {
		ok = false
		printf("\nWARNING: Inconsistent RPCs detected!\n")
	}

	printf("\nChecking %s price: ", cfg.CoinID)
	quote, err := rpc.FetchPriceQuote(ctx, cfg.CoinID)
	if err != nil {
		ok = false
		report.PriceStatus = "error"
		report.PriceError = err.Error()
		printf("FAILED (%v)\n", err)
	} else {
		report.PriceStatus = "ok"
		report.PriceUSD = quote.Quote.USD
		printf("OK (%s, %s 24h)\n", utils.FormatUSD(quote.Quote.USD, 2), utils.FormatPercent(quote.Quote.USD24hChange))
	}

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	return ok
}
