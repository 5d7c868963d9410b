package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	appName        = "gallery"
	sessionAccount = "session_secret"
	tokenAccount   = "client_token"
	dsnAccount     = "storage_dsn"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Media   MediaConfig
	Log     LogConfig
	Worker  WorkerConfig
	Client  ClientConfig

	sources map[string]string
}

func (c *Config) setSource(key, layer string) {
	if c.sources == nil {
		c.sources = make(map[string]string)
	}
	c.sources[key] = layer
}

// Source names the layer that supplied key: default, saved or env.
func (c Config) Source(key string) string {
	if l, ok := c.sources[key]; ok {
		return l
	}
	return fromDefault
}

type ServerConfig struct {
	Host      string
	Port      int
	MaxConns  int
	PublicURL string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Driver  string // sqlite or postgres
	DataDir string
	DSN     string
}

type MediaConfig struct {
	// Bucket is a blob URL (s3://, gs://, file://, mem://). Empty keeps
	// objects as files under Dir.
	Bucket  string
	Dir     string
	BaseURL string
	// Serve mounts the bucket under BaseURL. Disable when a CDN or reverse
	// proxy serves the files.
	Serve bool
}

type LogConfig struct {
	Level string
}

type WorkerConfig struct {
	PollInterval string
}

// Poll returns the parsed poll interval, falling back to two seconds.
func (w WorkerConfig) Poll() time.Duration {
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

type ClientConfig struct {
	ServerURL string
	Token     string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     3000,
			MaxConns: 256,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: dataDir,
		},
		Media: MediaConfig{
			BaseURL: "/media",
			Serve:   true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Worker: WorkerConfig{
			PollInterval: "2s",
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:3000",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.gallery.app) and secrets
// fall back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/gallery/config.json
// and secrets live in $XDG_DATA_HOME/gallery/secrets.json.
//
// Environment variables (GALLERY_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), platformSecrets{})
}

// secretStore abstracts Keychain access for testing.
type secretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyLayers(&cfg, b); err != nil {
		return Config{}, err
	}

	if cfg.Storage.DSN == "" {
		if v, err := ss.Get(appName, dsnAccount); err == nil && v != "" {
			cfg.Storage.DSN = v
		}
	}
	if cfg.Client.Token == "" {
		if v, err := ss.Get(appName, tokenAccount); err == nil && v != "" {
			cfg.Client.Token = v
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("missing required config: storage DSN for the postgres driver. "+
				"Set it via environment variable GALLERY_STORAGE_DSN%s", secretHint(dsnAccount))
		}
	default:
		return fmt.Errorf("invalid storage.driver %q: want sqlite or postgres", cfg.Storage.Driver)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return nil
}

// SessionSecretSize is the length of a generated session signing key.
const SessionSecretSize = 32

// GetSessionSecret returns the session signing key. A non-empty override
// wins; otherwise the key is read from the secret store and generated on
// first use.
func GetSessionSecret(override string) ([]byte, error) {
	return sessionSecretWith(platformSecrets{}, override)
}

func sessionSecretWith(ss secretStore, override string) ([]byte, error) {
	if override != "" {
		return []byte(override), nil
	}
	if v, err := ss.Get(appName, sessionAccount); err == nil && v != "" {
		return hex.DecodeString(strings.TrimSpace(v))
	}
	key := make([]byte, SessionSecretSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	if err := ss.Set(appName, sessionAccount, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("storing session secret: %w", err)
	}
	return key, nil
}

// SaveClientToken stores the CLI session token in the secret store.
func SaveClientToken(token string) error {
	return platformSecrets{}.Set(appName, tokenAccount, token)
}

// SaveStorageDSN stores the Postgres DSN in the secret store.
func SaveStorageDSN(dsn string) error {
	return platformSecrets{}.Set(appName, dsnAccount, dsn)
}
