// Package secrets stores portal credentials outside the configuration
// file. The default backend is the operating system keyring; secrets are
// never logged and never written to disk in cleartext.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name under which secrets are stored.
const Service = "invoice-fetcher"

// ErrNotFound is returned when no secret exists for the given key.
var ErrNotFound = errors.New("secret not found")

// Store provides access to stored secrets.
type Store interface {
	Get(key string) (string, error)
	Set(key, secret string) error
	Delete(key string) error
}

// Keyring stores secrets in the system keyring.
type Keyring struct{}

func NewKeyring() *Keyring {
	return &Keyring{}
}

func (k *Keyring) Get(key string) (string, error) {
	secret, err := keyring.Get(Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

func (k *Keyring) Set(key, secret string) error {
	return keyring.Set(Service, key, secret)
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Memory is an in-memory store for tests.
type Memory struct {
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(key string) (string, error) {
	secret, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (m *Memory) Set(key, secret string) error {
	m.values[key] = secret
	return nil
}

func (m *Memory) Delete(key string) error {
	if _, ok := m.values[key]; !ok {
		return ErrNotFound
	}
	delete(m.values, key)
	return nil
}
