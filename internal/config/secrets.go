package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "ciphersql"

// Secret names accepted by SetSecret.
const (
	SecretDatabasePassword = "db-password"
	SecretHintAPIKey       = "hint-api-key"
)

// SecretNames lists the secrets the keyring may hold.
var SecretNames = []string{SecretDatabasePassword, SecretHintAPIKey}

// SetSecret stores a secret in the OS keyring.
func SetSecret(name, value string) error {
	if !slices.Contains(SecretNames, name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", name, err)
	}
	return nil
}

// ResolveSecrets fills empty credentials from the OS keyring for sections
// that opt in with keyring: true. A secret that was never stored is left
// empty.
func (cfg *Config) ResolveSecrets() error {
	if cfg.Database.Keyring && cfg.Database.Password == "" {
		pw, err := lookupSecret(SecretDatabasePassword)
		if err != nil {
			return err
		}
		cfg.Database.Password = pw
	}
	if cfg.Hint.Keyring && cfg.Hint.APIKey == "" {
		key, err := lookupSecret(SecretHintAPIKey)
		if err != nil {
			return err
		}
		cfg.Hint.APIKey = key
	}
	return nil
}

func lookupSecret(name string) (string, error) {
	v, err := keyring.Get(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", name, err)
	}
	return v, nil
}
