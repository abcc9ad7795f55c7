package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configDir  = ".ciphersql"
	configFile = "ciphersql"
	configType = "yaml"
	envPrefix  = "CIPHERSQL"
)

// Load reads ciphersql.yaml from path, or from the working directory and
// ~/.ciphersql when path is empty. A missing file in the search paths is not
// an error: defaults and CIPHERSQL_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dir, dirErr := DirPath()
	setDefaults(v, dir)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFile)
		v.AddConfigPath(".")
		if dirErr == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Assignments.Path = expandHome(cfg.Assignments.Path)

	return cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	// Every key needs a default for AutomaticEnv to reach it during Unmarshal.
	v.SetDefault("database.name", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.keyring", false)

	v.SetDefault("pool.max_conns", 5)
	v.SetDefault("pool.min_conns", 1)
	v.SetDefault("pool.acquire_timeout", 3*time.Second)
	v.SetDefault("pool.max_conn_lifetime", 30*time.Minute)

	v.SetDefault("gateway.statement_timeout", 5*time.Second)

	v.SetDefault("assignments.path", filepath.Join(dir, "assignments.db"))

	v.SetDefault("hint.api_key", "")
	v.SetDefault("hint.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("hint.model", "openchat/openchat-7b:free")
	v.SetDefault("hint.max_tokens", 150)
	v.SetDefault("hint.timeout", 10*time.Second)
	v.SetDefault("hint.max_retries", 2)
	v.SetDefault("hint.keyring", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SaveDatabase writes conn as the database section of the config file at
// path, keeping the rest of the file. An empty path means
// ~/.ciphersql/ciphersql.yaml. The password is left out when the keyring
// holds it.
func SaveDatabase(path string, conn Connection) error {
	if path == "" {
		dir, err := DirPath()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if conn.Keyring {
		conn.Password = ""
	}
	v.Set("database", map[string]any{
		"name":     conn.Name,
		"driver":   conn.Driver,
		"host":     conn.Host,
		"port":     conn.Port,
		"database": conn.Database,
		"username": conn.Username,
		"password": conn.Password,
		"sslmode":  conn.SSLMode,
		"keyring":  conn.Keyring,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DirPath returns ~/.ciphersql.
func DirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
