package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "GALLERY_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "GALLERY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "GALLERY_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.public_url", typ: kString, env: "GALLERY_SERVER_PUBLIC_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.PublicURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicURL },
	},
	{
		key: "storage.driver", typ: kString, env: "GALLERY_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "GALLERY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.dsn", typ: kString, env: "GALLERY_STORAGE_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "media.bucket", typ: kString, env: "GALLERY_MEDIA_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Media.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.Bucket },
	},
	{
		key: "media.dir", typ: kString, env: "GALLERY_MEDIA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Media.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.Dir },
	},
	{
		key: "media.base_url", typ: kString, env: "GALLERY_MEDIA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Media.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.BaseURL },
	},
	{
		key: "media.serve", typ: kBool, env: "GALLERY_MEDIA_SERVE",
		apply:   func(cfg *Config, v any) { cfg.Media.Serve = v.(bool) },
		extract: func(cfg Config) any { return cfg.Media.Serve },
	},
	{
		key: "log.level", typ: kString, env: "GALLERY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "GALLERY_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "client.server_url", typ: kString, env: "GALLERY_SERVER_URL",
		apply:   func(cfg *Config, v any) { cfg.Client.ServerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.ServerURL },
	},
	{
		key: "client.token", typ: kString, env: "GALLERY_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Client.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.Token },
	},
}

// Layers reported by ShowAll.
const (
	fromDefault = "default"
	fromSaved   = "saved"
	fromEnv     = "env"
)

func readBackend(b ConfigBackend, s keySpec) (any, bool, error) {
	switch s.typ {
	case kInt:
		v, ok, err := b.GetInt(s.key)
		return v, ok, err
	case kBool:
		v, ok, err := b.GetBool(s.key)
		return v, ok, err
	}
	v, ok, err := b.GetString(s.key)
	return v, ok, err
}

// parseValue converts user text (env var or config set) to the key's type.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	}
	return raw, nil
}

// applyLayers fills cfg from the backend, then GALLERY_* variables, and
// records which layer supplied each key. Unparseable env values are skipped.
func applyLayers(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if !s.secret {
			v, ok, err := readBackend(b, s)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
				cfg.setSource(s.key, fromSaved)
			}
		}

		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
		cfg.setSource(s.key, fromEnv)
	}
	return nil
}

func lookupSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("%s is a secret: set %s or store it in the secret store", key, s.env)
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key: %q", key)
}
