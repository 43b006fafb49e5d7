// Package badger is an embedded storage.LedgerStore on Badger. Records are
// JSON values under typed key prefixes; one Commit is one Badger transaction.
package badger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/storage"
)

// Key prefixes
const (
	vaultPrefix    = "vault/"
	strategyPrefix = "strategy/"
	positionPrefix = "position/"
)

// OpenOptions configure the database.
type OpenOptions struct {
	Path string
	// EncryptionKey enables encryption at rest when set. Must be 16, 24 or 32 bytes.
	EncryptionKey []byte
	// InMemory keeps everything in memory and ignores Path.
	InMemory bool
}

// LedgerStore implements storage.LedgerStore using Badger.
type LedgerStore struct {
	db *badger.DB
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Open opens or creates the database.
func Open(opts OpenOptions) (*LedgerStore, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, stderrors.New("badger: path is required")
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if len(opts.EncryptionKey) > 0 {
		// Encrypted workloads require an index cache.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &LedgerStore{db: db}, nil
}

// Close closes the database.
func (s *LedgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func vaultKey(key string) []byte           { return []byte(vaultPrefix + key) }
func strategyKey(vault, key string) []byte { return []byte(strategyPrefix + vault + "/" + key) }
func positionKey(vault, owner string) []byte {
	return []byte(positionPrefix + vault + "/" + owner)
}

// GetVault retrieves a vault by key. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetVault(_ context.Context, key string) (_ *domain.Vault, err error) {
	defer observe("get_vault", time.Now(), &err)

	var v domain.Vault
	err = s.db.View(func(txn *badger.Txn) error {
		return get(txn, vaultKey(key), &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVaults retrieves all vaults ordered by key.
func (s *LedgerStore) ListVaults(_ context.Context) (_ []*domain.Vault, err error) {
	defer observe("list_vaults", time.Now(), &err)

	var out []*domain.Vault
	err = s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(vaultPrefix), func(val []byte) error {
			var v domain.Vault
			if err := json.Unmarshal(val, &v); err != nil {
				return errors.Wrap(err, "decode vault")
			}
			out = append(out, &v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Badger iterates in key order, which is vault key order.
	return out, nil
}

// GetStrategies retrieves the strategy records of a vault ordered by index.
func (s *LedgerStore) GetStrategies(_ context.Context, vault string) (_ []*domain.StrategyDebtRecord, err error) {
	defer observe("get_strategies", time.Now(), &err)

	var out []*domain.StrategyDebtRecord
	err = s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(strategyPrefix+vault+"/"), func(val []byte) error {
			var r domain.StrategyDebtRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return errors.Wrap(err, "decode strategy")
			}
			out = append(out, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// GetPosition retrieves a user position. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetPosition(_ context.Context, vault, owner string) (_ *domain.UserPosition, err error) {
	defer observe("get_position", time.Now(), &err)

	var p domain.UserPosition
	err = s.db.View(func(txn *badger.Txn) error {
		return get(txn, positionKey(vault, owner), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPositions retrieves every position of a vault ordered by owner.
func (s *LedgerStore) ListPositions(_ context.Context, vault string) (_ []*domain.UserPosition, err error) {
	defer observe("list_positions", time.Now(), &err)

	var out []*domain.UserPosition
	err = s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(positionPrefix+vault+"/"), func(val []byte) error {
			var p domain.UserPosition
			if err := json.Unmarshal(val, &p); err != nil {
				return errors.Wrap(err, "decode position")
			}
			out = append(out, &p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit applies a changeset in one transaction.
func (s *LedgerStore) Commit(_ context.Context, cs *storage.Changeset) (err error) {
	if err := cs.Validate(); err != nil {
		return err
	}
	defer observe("commit", time.Now(), &err)

	key := cs.Vault.Key
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(vaultKey(key))
		exists := err == nil
		if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(err, "read vault")
		}

		switch cs.Kind {
		case storage.ChangeCreate:
			if exists {
				return storage.ErrDuplicateKey
			}
		case storage.ChangeUpdate, storage.ChangeDelete:
			if !exists {
				return storage.ErrNotFound
			}
		default:
			return storage.ErrInvalidInput
		}

		if cs.Kind == storage.ChangeDelete {
			return deleteVault(txn, key)
		}

		if err := put(txn, vaultKey(key), cs.Vault); err != nil {
			return err
		}
		for _, removed := range cs.RemovedStrategies {
			if err := txn.Delete(strategyKey(key, removed)); err != nil {
				return errors.Wrap(err, "delete strategy")
			}
		}
		for _, r := range cs.Strategies {
			if err := put(txn, strategyKey(key, r.Key), r); err != nil {
				return err
			}
		}
		for _, p := range cs.Positions {
			if err := put(txn, positionKey(key, p.Owner), p); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteVault(txn *badger.Txn, key string) error {
	var keys [][]byte
	for _, prefix := range []string{strategyPrefix + key + "/", positionPrefix + key + "/"} {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
	}
	keys = append(keys, vaultKey(key))

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return errors.Wrapf(err, "delete %s", k)
		}
	}
	return nil
}

func get(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		return errors.Wrapf(err, "get %s", key)
	}
	return item.Value(func(val []byte) error {
		return errors.Wrapf(json.Unmarshal(val, dst), "decode %s", key)
	})
}

func put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(txn.Set(key, data), "set %s", key)
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func observe(operation string, start time.Time, err *error) {
	if stderrors.Is(*err, storage.ErrNotFound) {
		observability.RecordDBQuery("badger", operation, time.Since(start).Seconds(), nil)
		return
	}
	observability.RecordDBQuery("badger", operation, time.Since(start).Seconds(), *err)
}
