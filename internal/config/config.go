package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketpulse-dash/internal/domain"
)

const (
	CredentialStoreFile  = "file"
	CredentialStoreRedis = "redis"
)

type Config struct {
	MarketAPIBase    string
	DefaultSymbol    string
	RSILow           float64
	RSIHigh          float64
	PollIntervalMS   int
	RequestTimeoutMS int
	ClientRatePerSec int
	HistoryCapacity  int
	TableRows        int
	ChartPoints      int
	PollConfigFile   string

	CredentialStore string
	CredentialDir   string
	CredentialKey   string
	RedisURL        string

	MarketUsername string
	MarketPassword string

	StatusHTTPPort int
	StatusAPIKey   string

	TelegramBotToken string
	TelegramChatID   int64

	SSHPort                int
	SSHHostKeyPath         string
	SSHAllowedFingerprints []string

	LogLevel string
	LogFile  string

	// Warnings collects notes about unset or invalid values. Load runs
	// before the logger exists, so callers log them.
	Warnings []string
}

func Load() *Config {
	cfg := &Config{}

	cfg.MarketAPIBase = strings.TrimRight(envString("MARKET_API_BASE", "http://localhost:8080"), "/")
	cfg.DefaultSymbol = strings.ToUpper(envString("DEFAULT_SYMBOL", domain.DefaultSymbol))

	cfg.RSILow = cfg.envFloat("RSI_LOW", domain.DefaultRSILow, func(v float64) bool { return v >= 0 && v <= 100 })
	cfg.RSIHigh = cfg.envFloat("RSI_HIGH", domain.DefaultRSIHigh, func(v float64) bool { return v >= 0 && v <= 100 })
	if cfg.RSILow > cfg.RSIHigh {
		cfg.warnf("RSI_LOW=%g is above RSI_HIGH=%g, zones will overlap", cfg.RSILow, cfg.RSIHigh)
	}

	cfg.PollIntervalMS = cfg.envInt("POLL_INTERVAL_MS", domain.DefaultIntervalMS, positive)
	cfg.RequestTimeoutMS = cfg.envInt("REQUEST_TIMEOUT_MS", 5000, positive)
	cfg.ClientRatePerSec = cfg.envInt("CLIENT_RATE_LIMIT_PER_SEC", 5, func(n int) bool { return n >= 0 })
	cfg.HistoryCapacity = cfg.envInt("HISTORY_CAPACITY", 100, positive)
	cfg.TableRows = cfg.envInt("TABLE_ROWS", 20, positive)
	cfg.ChartPoints = cfg.envInt("CHART_POINTS", 50, positive)
	cfg.PollConfigFile = strings.TrimSpace(os.Getenv("POLL_CONFIG_FILE"))

	cfg.CredentialStore = strings.ToLower(envString("CREDENTIAL_STORE", CredentialStoreFile))
	if cfg.CredentialStore != CredentialStoreFile && cfg.CredentialStore != CredentialStoreRedis {
		cfg.warnf("unsupported CREDENTIAL_STORE=%q, defaulting to file", cfg.CredentialStore)
		cfg.CredentialStore = CredentialStoreFile
	}
	cfg.CredentialDir = envString("CREDENTIAL_DIR", defaultCredentialDir())
	cfg.CredentialKey = envString("CREDENTIAL_KEY", "token")

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if cfg.RedisURL == "" {
		if cfg.CredentialStore == CredentialStoreRedis {
			cfg.warnf("REDIS_URL not set, defaulting to localhost:6379")
		}
		cfg.RedisURL = "localhost:6379"
	}

	cfg.MarketUsername = os.Getenv("MARKET_USERNAME")
	cfg.MarketPassword = os.Getenv("MARKET_PASSWORD")

	cfg.StatusHTTPPort = cfg.envInt("STATUS_HTTP_PORT", 8081, validPort)
	cfg.StatusAPIKey = strings.TrimSpace(os.Getenv("STATUS_API_KEY"))

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		} else {
			cfg.warnf("invalid TELEGRAM_CHAT_ID=%q, alerts disabled", v)
		}
	}
	if cfg.TelegramBotToken == "" {
		cfg.warnf("TELEGRAM_BOT_TOKEN not set, telegram alerts disabled")
	}

	cfg.SSHPort = cfg.envInt("SSH_PORT", 2222, validPort)
	cfg.SSHHostKeyPath = envString("SSH_HOST_KEY_PATH", ".ssh/dashboard_ed25519")
	cfg.SSHAllowedFingerprints = splitList(os.Getenv("SSH_ALLOWED_FINGERPRINTS"))

	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	cfg.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))

	return cfg
}

// PollConfig is the initial poll config built from the environment.
func (c *Config) PollConfig() domain.PollConfig {
	return domain.PollConfig{
		Symbol:     c.DefaultSymbol,
		RSILow:     c.RSILow,
		RSIHigh:    c.RSIHigh,
		IntervalMS: c.PollIntervalMS,
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) envInt(name string, def int, valid func(int) bool) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || !valid(n) {
		c.warnf("invalid %s=%q, defaulting to %d", name, v, def)
		return def
	}
	return n
}

func (c *Config) envFloat(name string, def float64, valid func(float64) bool) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(n) {
		c.warnf("invalid %s=%q, defaulting to %g", name, v, def)
		return def
	}
	return n
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func positive(n int) bool { return n > 0 }

func validPort(n int) bool { return n > 0 && n <= 65535 }

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultCredentialDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".marketpulse"
	}
	return filepath.Join(home, ".marketpulse")
}
