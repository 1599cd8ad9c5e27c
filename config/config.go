package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"textchat/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	FriendBackendFile   = "file"
	FriendBackendSQLite = "sqlite"
)

type Config struct {
	Port          int
	DataDir       string
	FriendsFile   string
	HistoryDir    string
	DBPath        string
	AccountsFile  string
	FriendBackend string
	WriteTimeout  int // seconds, 0 disables
	LoginRate     float64
	LoginBurst    int
	LogLevel      string
	LogFormat     string
	ControlSocket string
}

// Load reads .env (if present) and then the CHAT_* environment variables
// over the defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("ignoring .env")
	}

	cfg := &Config{
		Port:          9000,
		DataDir:       "data",
		AccountsFile:  "accounts.yaml",
		FriendBackend: FriendBackendFile,
		WriteTimeout:  30,
		LoginRate:     1,
		LoginBurst:    5,
		LogLevel:      "info",
		LogFormat:     "text",
		ControlSocket: "/tmp/textchat.sock",
	}

	if portStr := os.Getenv("CHAT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if dir := os.Getenv("CHAT_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	cfg.FriendsFile = getEnv("CHAT_FRIENDS_FILE", filepath.Join(cfg.DataDir, "friends_db.txt"))
	cfg.HistoryDir = getEnv("CHAT_HISTORY_DIR", filepath.Join(cfg.DataDir, "history"))
	cfg.DBPath = getEnv("CHAT_DB_PATH", filepath.Join(cfg.DataDir, "textchat.db"))
	cfg.AccountsFile = getEnv("CHAT_ACCOUNTS_FILE", cfg.AccountsFile)
	cfg.FriendBackend = getEnv("CHAT_FRIEND_BACKEND", cfg.FriendBackend)
	cfg.LogLevel = getEnv("CHAT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("CHAT_LOG_FORMAT", cfg.LogFormat)

	// an explicitly empty value disables the control socket
	if sock, ok := os.LookupEnv("CHAT_CONTROL_SOCKET"); ok {
		cfg.ControlSocket = sock
	}

	if timeoutStr := os.Getenv("CHAT_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout >= 0 {
			cfg.WriteTimeout = timeout
		}
	}

	if rateStr := os.Getenv("CHAT_LOGIN_RATE"); rateStr != "" {
		if rate, err := strconv.ParseFloat(rateStr, 64); err == nil && rate > 0 {
			cfg.LoginRate = rate
		}
	}

	if burstStr := os.Getenv("CHAT_LOGIN_BURST"); burstStr != "" {
		if burst, err := strconv.Atoi(burstStr); err == nil && burst > 0 {
			cfg.LoginBurst = burst
		}
	}

	return cfg
}

func (c *Config) Validate() error {
	switch c.FriendBackend {
	case FriendBackendFile, FriendBackendSQLite:
	default:
		return fmt.Errorf("unknown friend backend %q", c.FriendBackend)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

type accountsFile struct {
	Accounts []models.Credential `yaml:"accounts"`
}

// LoadAccounts reads the account seed file:
//
//	accounts:
//	  - account: alice
//	    secret: "123"
func LoadAccounts(path string) ([]models.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Accounts))
	for i, c := range f.Accounts {
		if c.Account == "" || c.Secret == "" {
			return nil, fmt.Errorf("%s: entry %d needs account and secret", path, i)
		}
		if err := models.ValidateAccount(c.Account); err != nil {
			return nil, fmt.Errorf("%s: entry %d: account %q: %w", path, i, c.Account, err)
		}
		if seen[c.Account] {
			return nil, fmt.Errorf("%s: account %q listed twice", path, c.Account)
		}
		seen[c.Account] = true
	}
	return f.Accounts, nil
}

// getEnv returns the value of the environment variable named by the key.
// If the variable is not set, it returns the fallback value.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
