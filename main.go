package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"walletfolio/pkg/config"
	"walletfolio/pkg/logger"
	"walletfolio/pkg/pricefeed"
	"walletfolio/pkg/provider"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/server"
	"walletfolio/pkg/tui"
	"walletfolio/pkg/watcher"

	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

const logFileName = ".walletfolio.log"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	configFlag := flag.String("config", "", "Path to configuration file")
	envFlag := flag.String("env", ".env", "Path to a .env file with WALLETFOLIO_ overrides")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	initFlag := flag.Bool("init", false, "Write a default configuration file and exit")
	restoreFlag := flag.Bool("restore", false, "Restore the most recent configuration backup and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("walletfolio version %s\n", Version)
		os.Exit(0)
	}

	if err := config.LoadEnv(*envFlag); err != nil {
		fmt.Printf("Error loading %s: %v\n", *envFlag, err)
		os.Exit(1)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Error restoring backup of %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Restored %s from its latest backup.\n", path)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}
	cfg, err = config.ApplyEnv(cfg)
	if err != nil {
		fmt.Printf("Error applying environment: %v\n", err)
		os.Exit(1)
	}

	if *initFlag {
		if len(cfg.RPCURLs) == 0 {
			cfg.RPCURLs = []string{config.DefaultRPCURL}
		}
		if err := config.SaveConfig(cfg, path); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", path)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *testFlag || *testLongFlag {
		ok := runCheck(ctx, cfg, path, os.Stdout, *jsonFlag)
		if !ok {
			os.Exit(1)
		}
		os.Exit(0)
	}

	logPath := cfg.LogPath
	if logPath == "" && !*serverFlag {
		// the dashboard owns the terminal
		if home, err := os.UserHomeDir(); err == nil {
			logPath = filepath.Join(home, logFileName)
		}
	}
	log, err := logger.New(logPath)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(ctx, cfg, log, *serverFlag, *portFlag); err != nil {
		log.Error("walletfolio stopped", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, serverMode bool, port int) error {
	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	reg := registry.New(store, log)
	if err := reg.Load(ctx); err != nil {
		log.Warn("wallet registry restored empty", zap.Error(err))
	}
	vm := registry.NewViewMode(store, log)
	if err := vm.Load(ctx); err != nil {
		log.Warn("view mode restored to default", zap.Error(err))
	}

	var prov provider.Provider
	if len(cfg.RPCURLs) > 0 {
		prov = provider.NewRPCProvider(cfg.RPCURLs, cfg.ConnectedAddress, log)
	} else {
		log.Warn("no rpc_urls configured, balances will not be fetched")
	}

	poller := pricefeed.NewPoller(cfg.CoinID, nil, log)
	w := watcher.NewWatcher(reg, vm, poller, prov, log)
	w.Start(ctx)
	defer w.Stop()

	log.Info("walletfolio started",
		zap.String("version", Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("wallets", reg.Len()),
		zap.String("view_mode", string(vm.Mode())),
	)

	srv := server.NewServer(w, log)
	if serverMode {
		fmt.Printf("Running in server mode on port %d...\n", port)
		return srv.Start(ctx, port)
	}

	go func() {
		if err := srv.Start(ctx, port); err != nil {
			log.Warn("api server stopped", zap.Error(err))
		}
	}()
	return tui.Start(w, cfg, Version)
}
