package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"walletfolio/pkg/storage"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	ConfigFileName  = ".walletfolio.json"
	DataFileName    = ".walletfolio-data.json"
	DefaultCoinID   = "ethereum"
	DefaultExplorer = "https://etherscan.io"
	DefaultRPCURL   = "https://ethereum-rpc.publicnode.com"
	EnvPrefix       = "WALLETFOLIO_"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StorageConfig selects where wallets and the view mode are persisted.
type StorageConfig struct {
	Backend       string `json:"backend"`
	Path          string `json:"path,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	Namespace     string `json:"namespace,omitempty"`
}

// Config holds application-wide settings.
type Config struct {
	RPCURLs               []string      `json:"rpc_urls"`
	CoinID                string        `json:"coin_id"`
	ConnectedAddress      string        `json:"connected_address,omitempty"`
	ExplorerURL           string        `json:"explorer_url,omitempty"`
	Storage               StorageConfig `json:"storage"`
	FiatDecimals          int           `json:"fiat_decimals"`
	TokenDecimals         int           `json:"token_decimals"`
	PrivacyTimeoutSeconds int           `json:"privacy_timeout_seconds"`
	LogPath               string        `json:"log_path,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		RPCURLs:               []string{},
		CoinID:                DefaultCoinID,
		ExplorerURL:           DefaultExplorer,
		Storage:               StorageConfig{Backend: BackendFile},
		FiatDecimals:          2,
		TokenDecimals:         4,
		PrivacyTimeoutSeconds: 60,
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// LoadConfig decodes a configuration, filling missing fields with defaults.
func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		RPCURLs               []string       `json:"rpc_urls"`
		CoinID                string         `json:"coin_id"`
		ConnectedAddress      string         `json:"connected_address"`
		ExplorerURL           *string        `json:"explorer_url"`
		Storage               *StorageConfig `json:"storage"`
		FiatDecimals          *int           `json:"fiat_decimals"`
		TokenDecimals         *int           `json:"token_decimals"`
		PrivacyTimeoutSeconds *int           `json:"privacy_timeout_seconds"`
		LogPath               string         `json:"log_path"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg := Default()
	if raw.RPCURLs != nil {
		cfg.RPCURLs = raw.RPCURLs
	}
	if raw.CoinID != "" {
		cfg.CoinID = raw.CoinID
	}
	cfg.ConnectedAddress = strings.TrimSpace(raw.ConnectedAddress)
	if raw.ExplorerURL != nil {
		cfg.ExplorerURL = *raw.ExplorerURL
	}
	if raw.Storage != nil {
		cfg.Storage = *raw.Storage
		if cfg.Storage.Backend == "" {
			cfg.Storage.Backend = BackendFile
		}
	}
	if raw.FiatDecimals != nil {
		cfg.FiatDecimals = *raw.FiatDecimals
	}
	if raw.TokenDecimals != nil {
		cfg.TokenDecimals = *raw.TokenDecimals
	}
	if raw.PrivacyTimeoutSeconds != nil {
		cfg.PrivacyTimeoutSeconds = *raw.PrivacyTimeoutSeconds
	}
	cfg.LogPath = raw.LogPath
	return cfg, nil
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides cfg with WALLETFOLIO_* environment variables.
func ApplyEnv(cfg Config) (Config, error) {
	if v := getEnv("RPC_URLS", ""); v != "" {
		cfg.RPCURLs = splitList(v)
	}
	cfg.CoinID = getEnv("COIN_ID", cfg.CoinID)
	cfg.ConnectedAddress = getEnv("CONNECTED_ADDRESS", cfg.ConnectedAddress)
	cfg.ExplorerURL = getEnv("EXPLORER_URL", cfg.ExplorerURL)
	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.RedisAddr = getEnv("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.Namespace = getEnv("REDIS_NAMESPACE", cfg.Storage.Namespace)
	cfg.LogPath = getEnv("LOG_PATH", cfg.LogPath)

	if v := getEnv("REDIS_DB", ""); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "%sREDIS_DB", EnvPrefix)
		}
		cfg.Storage.RedisDB = db
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every structural problem in cfg.
func (c Config) Validate() []string {
	var problems []string
	if len(c.RPCURLs) == 0 {
		problems = append(problems, "no rpc_urls configured")
	}
	for i, u := range c.RPCURLs {
		if strings.TrimSpace(u) == "" {
			problems = append(problems, fmt.Sprintf("rpc_urls[%d] is empty", i))
		}
	}
	if strings.TrimSpace(c.CoinID) == "" {
		problems = append(problems, "coin_id is empty")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			problems = append(problems, "storage.redis_addr is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.FiatDecimals < 0 || c.TokenDecimals < 0 {
		problems = append(problems, "decimals must not be negative")
	}
	return problems
}

func SaveConfig(cfg Config, path string) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "failed to read existing config for backup")
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return errors.Wrap(err, "failed to write backup config")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return errors.New("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

// OpenStore builds the storage backend named in cfg. The returned close
// function releases any connection.
func (c Config) OpenStore(ctx context.Context) (storage.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.Storage.Backend {
	case BackendMemory:
		return storage.NewMemoryStore(), noop, nil
	case BackendRedis:
		s := storage.NewRedisStore(storage.RedisOptions{
			Addr:      c.Storage.RedisAddr,
			Password:  c.Storage.RedisPassword,
			DB:        c.Storage.RedisDB,
			Namespace: c.Storage.Namespace,
		})
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, noop, errors.Wrapf(err, "connect to redis at %s", c.Storage.RedisAddr)
		}
		return s, s.Close, nil
	case BackendFile, "":
		path := c.Storage.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, noop, err
			}
			path = filepath.Join(home, DataFileName)
		}
		return storage.NewFileStore(path), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}
