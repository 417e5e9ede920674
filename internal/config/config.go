// Package config centralizes runtime configuration for the marketplace
// client. It loads an optional JSON configuration file, then a .env file,
// then environment overrides, and exposes a process-wide configuration with
// sensible defaults. Development runs need none of the three.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds configurable options for the marketplace client.
type Config struct {
	Port             int      `json:"port"`
	LedgerURL        string   `json:"ledger_url"`
	KeyFile          string   `json:"key_file"`
	FetchConcurrency int      `json:"fetch_concurrency"`
	LogLevel         string   `json:"log_level"`
	LogJSON          bool     `json:"log_json"`
	StatusLogSize    int      `json:"status_log_size"`
	AllowedOrigins   []string `json:"allowed_origins"`
	DocsDir          string   `json:"docs_dir"`

	// DevLedger runs an in-process reference ledger instead of dialing
	// LedgerURL. The wallet account becomes the active identity.
	DevLedger    bool   `json:"dev_ledger"`
	LedgerDBFile string `json:"ledger_db_file"`
	// LedgerListen is the address cmd/ledgerd serves JSON-RPC on.
	LedgerListen string `json:"ledger_listen"`

	Fluent FluentConfig `json:"fluent"`
}

// FluentConfig controls forwarding of status messages to Fluent Bit.
type FluentConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	TagPrefix string `json:"tag_prefix"`
}

var cfg *Config

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:             8080,
		LedgerURL:        "http://127.0.0.1:7545",
		KeyFile:          "pmc_wallet.key",
		FetchConcurrency: 8,
		LogLevel:         "info",
		StatusLogSize:    200,
		AllowedOrigins:   []string{"*"},
		DocsDir:          "",
		LedgerDBFile:     "ledger.db",
		LedgerListen:     "127.0.0.1:7545",
		Fluent: FluentConfig{
			Port:      24224,
			TagPrefix: "pmc",
		},
	}
}

// LoadConfig reads a JSON file at path, if any, then applies .env and
// environment overrides. A missing or unparsable file falls back to
// defaults so the client can run with minimal friction.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()
	c := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err != nil:
			log.Printf("WARNING: config file %s not readable, using defaults: %v", path, err)
		default:
			var fromFile Config
			if err := json.Unmarshal(b, &fromFile); err != nil {
				log.Printf("WARNING: config file %s invalid, using defaults: %v", path, err)
			} else {
				c = merge(fromFile, def)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: could not load .env: %v", err)
	}
	applyEnv(c)

	cfg = c
	return cfg, nil
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		cfg = Defaults()
	}
	return cfg
}

// merge fills zero-value fields of c from def.
func merge(c Config, def *Config) *Config {
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.LedgerURL == "" {
		c.LedgerURL = def.LedgerURL
	}
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = def.FetchConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.StatusLogSize <= 0 {
		c.StatusLogSize = def.StatusLogSize
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = def.AllowedOrigins
	}
	if c.LedgerDBFile == "" {
		c.LedgerDBFile = def.LedgerDBFile
	}
	if c.LedgerListen == "" {
		c.LedgerListen = def.LedgerListen
	}
	if c.Fluent.Port == 0 {
		c.Fluent.Port = def.Fluent.Port
	}
	if c.Fluent.TagPrefix == "" {
		c.Fluent.TagPrefix = def.Fluent.TagPrefix
	}
	return &c
}

func applyEnv(c *Config) {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LedgerURL = getEnv("LEDGER_RPC_URL", c.LedgerURL)
	c.KeyFile = getEnv("WALLET_KEY_FILE", c.KeyFile)
	c.FetchConcurrency = getEnvAsInt("FETCH_CONCURRENCY", c.FetchConcurrency)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvAsBool("LOG_JSON", c.LogJSON)
	c.DocsDir = getEnv("DOCS_DIR", c.DocsDir)
	c.DevLedger = getEnvAsBool("DEV_LEDGER", c.DevLedger)
	c.LedgerDBFile = getEnv("LEDGER_DB_FILE", c.LedgerDBFile)
	c.LedgerListen = getEnv("LEDGER_LISTEN", c.LedgerListen)
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.AllowedOrigins = splitList(v)
	}

	c.Fluent.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", c.Fluent.Enabled)
	c.Fluent.Host = getEnv("FLUENTBIT_HOST", c.Fluent.Host)
	c.Fluent.Port = getEnvAsInt("FLUENTBIT_PORT", c.Fluent.Port)
	if c.Fluent.Enabled && c.Fluent.Host == "" {
		log.Println("WARNING: fluent forwarding enabled without a host, disabling it")
		c.Fluent.Enabled = false
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		log.Printf("WARNING: %s=%q is not a positive integer, using %d", key, s, fallback)
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		log.Printf("WARNING: %s=%q is not a boolean, using %t", key, s, fallback)
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
