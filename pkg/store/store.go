// Package store persists key to URL mappings.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no mapping matches a lookup.
	ErrNotFound = errors.New("mapping not found")
	// ErrDuplicateURL is returned by SaveMapping when the URL is already
	// stored under some key.
	ErrDuplicateURL = errors.New("url already exists")
	// ErrDuplicateKey is returned by SaveMapping when the key is taken.
	ErrDuplicateKey = errors.New("key already exists")
)

// Mapping is a stored key to URL association.
type Mapping struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store is the persistence backend of the shortener. Both keys and values
// are unique. Implementations are safe for concurrent use.
type Store interface {
	// GetURLForKey returns the URL stored under key or ErrNotFound.
	GetURLForKey(ctx context.Context, key string) (string, error)
	// SaveMapping stores a new mapping. It fails with ErrDuplicateURL or
	// ErrDuplicateKey if either side already exists; when both do,
	// ErrDuplicateURL wins.
	SaveMapping(ctx context.Context, key, value string) error
	// GetKeyForURL returns the key the URL is stored under or ErrNotFound.
	GetKeyForURL(ctx context.Context, value string) (string, error)
	// Close releases the resources held by the store.
	Close() error
}

// Lister is implemented by stores that can enumerate their mappings.
type Lister interface {
	ListMappings(ctx context.Context) ([]Mapping, error)
}

const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is one of DriverBadger, DriverPostgres or DriverMemory.
	Driver string
	// Path is the badger data directory.
	Path string
	// Connection is the postgres connection string.
	Connection string
	// User and Password override the credentials in Connection.
	User     string
	Password string
	// Schema is the postgres schema holding the mappings table.
	Schema string
}

// Open opens the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverBadger:
		s, err = OpenBadger(opts.Path)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, opts)
	case DriverMemory:
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
