package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	mu sync.RWMutex
	v  = newViper()
)

func newViper() *viper.Viper {
	vp := viper.New()
	vp.AutomaticEnv()
	return vp
}

// Load reads an optional config file (yaml, toml, json) on top of the environment.
// Environment variables keep precedence over file values.
func Load(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func lookup(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	return strings.TrimSpace(v.GetString(key))
}

func String(key, fallback string) string {
	s := lookup(key)
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := lookup(key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

// Int returns fallback when the value is missing or not a positive integer.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(String(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Duration accepts Go duration syntax ("90s", "2m").
func Duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(String(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
