package security

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainService is the service name API keys are stored under.
	KeychainService = "garybot"
)

// Keychain stores API keys in the OS keychain.
type Keychain struct {
	service string
}

// NewKeychain creates a new keychain instance
func NewKeychain() *Keychain {
	return &Keychain{service: KeychainService}
}

// StoreSecret stores a secret under name. An empty value deletes it.
func (k *Keychain) StoreSecret(name, value string) error {
	if value == "" {
		return k.DeleteSecret(name)
	}
	if err := keyring.Set(k.service, name, value); err != nil {
		return fmt.Errorf("failed to store %s in keychain: %w", name, err)
	}
	return nil
}

// Secret returns the secret stored under name, or "" when there is none.
func (k *Keychain) Secret(name string) (string, error) {
	value, err := keyring.Get(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil // Not found is not an error, just return empty
		}
		return "", fmt.Errorf("failed to get %s from keychain: %w", name, err)
	}
	return value, nil
}

// DeleteSecret removes the secret stored under name.
func (k *Keychain) DeleteSecret(name string) error {
	err := keyring.Delete(k.service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keychain: %w", name, err)
	}
	return nil
}
