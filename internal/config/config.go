// Package config loads layered configuration for the engine: project
// config file, user config file, environment variables, and defaults, via
// a single viper singleton.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

func debugEnabled() bool {
	return os.Getenv("SAVECONTEXT_DEBUG") != ""
}

func debugLogf(format string, args ...interface{}) {
	if debugEnabled() {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup.
//
// Precedence (highest to lowest): environment variables > config file >
// defaults. Only one config file is read: the first that exists of the
// project .savecontext/config.yaml (searched upward from the working
// directory), ~/.config/savecontext/config.yaml, and
// ~/.savecontext/config.yaml; the others are not merged in.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".savecontext", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "savecontext", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".savecontext", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// SAVECONTEXT_* env vars bind automatically; hyphens and dots in keys
	// map to underscores (SAVECONTEXT_EMBEDDINGS_ENABLED -> "embeddings.enabled").
	v.SetEnvPrefix("SAVECONTEXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "")
	v.SetDefault("test-mode", false)
	v.SetDefault("actor", "")
	v.SetDefault("terminal-key", "")
	v.SetDefault("lock-timeout", "30s")

	v.SetDefault("embeddings.enabled", true)
	v.SetDefault("embeddings.quality.provider", "ollama")
	v.SetDefault("embeddings.quality.url", "http://localhost:11434")
	v.SetDefault("embeddings.quality.model", "nomic-embed-text")
	v.SetDefault("embeddings.quality.token", "")
	v.SetDefault("embeddings.quality.dimensions", 768)
	v.SetDefault("embeddings.quality.concurrency", 4)
	v.SetDefault("embeddings.quality.batch-size", 50)
	v.SetDefault("embeddings.chunk.max-chars", 2000)
	v.SetDefault("embeddings.chunk.overlap", 200)
	v.SetDefault("embeddings.chunk.min-chunk-size", 64)

	v.SetDefault("sync.merge-strategy", "prefer-newer")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debugLogf("config: loaded from %s\n", v.ConfigFileUsed())
	} else {
		debugLogf("config: no config.yaml found; using defaults and environment variables\n")
	}

	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value at runtime (tests, flags).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetIdentity resolves the acting user's identity for audit trails.
//
// Priority chain: explicit flag value, SAVECONTEXT_ACTOR env / config
// "actor" key, git config user.name, the OS account name, then the
// literal "unknown".
func GetIdentity(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if actor := GetString("actor"); actor != "" {
		return actor
	}

	cmd := exec.Command("git", "config", "user.name")
	if output, err := cmd.Output(); err == nil {
		if gitUser := strings.TrimSpace(string(output)); gitUser != "" {
			return gitUser
		}
	}

	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	return "unknown"
}

// DatabasePath resolves the database file path, honoring the db override
// and the test-mode switch (spec.md §6: ~/.savecontext/test/savecontext.db
// when test mode is set).
func DatabasePath() (string, error) {
	if override := GetString("db"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	if GetBool("test-mode") {
		return filepath.Join(home, ".savecontext", "test", "savecontext.db"), nil
	}
	return filepath.Join(home, ".savecontext", "data", "savecontext.db"), nil
}
