// Package credstore provides the key-value stores the bearer credential is
// read from.
package credstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eatgo/apic/auth"
)

// DefaultKey is the key the host application stores its session token under.
const DefaultKey = "eatgo-token"

var (
	// ErrUnknownStore is returned by Open for an unsupported store kind.
	ErrUnknownStore = errors.New("unknown credential store kind")
)

// Store is a read-only view of a string keyed credential store.
// Get reports ok=false when the key holds no value.
type Store interface {
	Get(key string) (value string, ok bool, err error)
}

// Config selects and configures a Store.
type Config struct {
	Kind   string `mapstructure:"kind" validate:"omitempty,oneof=memory file sql"`
	Path   string `mapstructure:"path"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table" default:"credentials"`
}

// Source returns a CredentialSource reading key from store on every call.
func Source(store Store, key string) auth.CredentialSource {
	if key == "" {
		key = DefaultKey
	}
	return auth.SourceFunc(func() (string, bool, error) {
		return store.Get(key)
	})
}

// Open builds the Store described by cfg. SQL drivers must be registered by
// the caller.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		if cfg.Path == "" {
			return nil, errors.New("file credential store requires a path")
		}
		return NewFile(cfg.Path), nil
	case "sql":
		if cfg.Driver == "" || cfg.DSN == "" {
			return nil, errors.New("sql credential store requires driver and dsn")
		}
		return OpenSQL(cfg.Driver, cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Kind)
	}
}
