package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/storage"
	badgerstore "solana-vault-ledger/internal/storage/badger"
	chstore "solana-vault-ledger/internal/storage/clickhouse"
	"solana-vault-ledger/internal/storage/memory"
	"solana-vault-ledger/internal/storage/migrations"
	pgstore "solana-vault-ledger/internal/storage/postgres"
	sqlitestore "solana-vault-ledger/internal/storage/sqlite"
)

// stores holds the opened backends and their cleanup funcs.
type stores struct {
	ledger  storage.LedgerStore
	events  storage.EventStore
	closers []func()
}

// Close releases the backends in reverse open order.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.StorageConfig, log *logrus.Entry) (*stores, error) {
	st := &stores{}
	if err := st.openLedger(ctx, cfg, log); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.openEvents(ctx, cfg, log); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (s *stores) openLedger(ctx context.Context, cfg config.StorageConfig, log *logrus.Entry) error {
	switch cfg.Ledger {
	case config.BackendMemory:
		s.ledger = memory.NewLedgerStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
		}
		s.ledger = pgstore.NewLedgerStore(pool)

	case config.BackendBadger:
		db, err := badgerstore.Open(badgerstore.OpenOptions{Path: cfg.BadgerPath})
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("close badger")
			}
		})
		s.ledger = db

	default:
		return fmt.Errorf("unsupported ledger store %q", cfg.Ledger)
	}
	log.WithField("backend", cfg.Ledger).Info("ledger store ready")
	return nil
}

func (s *stores) openEvents(ctx context.Context, cfg config.StorageConfig, log *logrus.Entry) error {
	switch cfg.Events {
	case config.BackendMemory:
		s.events = memory.NewEventStore()

	case config.BackendClickHouse:
		var conn *chstore.Conn
		var err error
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.events = chstore.NewEventStore(conn)

	case config.BackendSQLite:
		es, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		s.closers = append(s.closers, func() { _ = es.Close() })
		s.events = es

	default:
		return fmt.Errorf("unsupported event store %q", cfg.Events)
	}
	log.WithField("backend", cfg.Events).Info("event store ready")
	return nil
}
