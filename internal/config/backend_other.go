//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// xdgDir returns $<env>/gallery, falling back to ~/<fallback>/gallery.
func xdgDir(env, fallback string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return appName + "-data"
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, appName)
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")
}

func secretHint(account string) string {
	return fmt.Sprintf(" or the secrets file %s (service: %s, account: %s)", secretsFilePath(), appName, account)
}

// writeJSONFile writes v with owner-only permissions, creating parent dirs.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// fileBackend is a flat JSON object keyed by dotted config key. Every write
// rewrites the whole file.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

// newFileBackend never fails: an unreadable file is reported and treated as empty.
func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] ignoring config file %s: %v\n", path, err)
	default:
		if err := json.Unmarshal(data, &b.data); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring malformed config file %s: %v\n", path, err)
			b.data = make(map[string]any)
		}
	}
	return b
}

func (b *fileBackend) set(key string, v any) error {
	b.data[key] = v
	return writeJSONFile(b.path, b.data)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

// GetInt accepts JSON numbers and numeric strings.
func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
}

// GetBool accepts JSON booleans and strings strconv.ParseBool understands.
func (b *fileBackend) GetBool(key string) (bool, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return false, false, nil
	}
	switch val := v.(type) {
	case bool:
		return val, true, nil
	case string:
		p, err := strconv.ParseBool(val)
		if err != nil {
			return false, true, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return p, true, nil
	}
	return false, true, fmt.Errorf("%s: unexpected %T", key, v)
}

func (b *fileBackend) SetString(key, val string) error    { return b.set(key, val) }
func (b *fileBackend) SetInt(key string, val int) error   { return b.set(key, val) }
func (b *fileBackend) SetBool(key string, val bool) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return writeJSONFile(b.path, b.data)
}
