package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/apoxy-dev/shorty/pkg/log"
)

var (
	keyPrefix = []byte("k/")
	urlPrefix = []byte("u/")
)

// BadgerStore keeps mappings in an embedded badger database. Every mapping
// is written as two entries in one transaction: "k/<key>" holding the URL
// and "u/<sha256(url)>" holding the key.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database in dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(log.Leveled{Component: "badger", Demote: true})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func mappingKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}

// urlIndexKey hashes the URL so arbitrarily long URLs stay within badger's
// key size limit.
func urlIndexKey(value string) []byte {
	sum := sha256.Sum256([]byte(value))
	return append(append([]byte{}, urlPrefix...), hex.EncodeToString(sum[:])...)
}

func getString(txn *badger.Txn, k []byte) (string, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *BadgerStore) GetURLForKey(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = getString(txn, mappingKey(key))
		return err
	})
	return value, err
}

func (s *BadgerStore) SaveMapping(ctx context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getString(txn, urlIndexKey(value)); err == nil {
			return ErrDuplicateURL
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := getString(txn, mappingKey(key)); err == nil {
			return ErrDuplicateKey
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := txn.Set(mappingKey(key), []byte(value)); err != nil {
			return err
		}
		return txn.Set(urlIndexKey(value), []byte(key))
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("concurrent write to key %q: %w", key, err)
	}
	return err
}

func (s *BadgerStore) GetKeyForURL(ctx context.Context, value string) (string, error) {
	var key string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		key, err = getString(txn, urlIndexKey(value))
		return err
	})
	return key, err
}

// ListMappings returns all mappings in key order.
func (s *BadgerStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	var out []Mapping
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Mapping{
				Key:   string(item.Key()[len(keyPrefix):]),
				Value: string(v),
			})
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
