// Package registry persists the adapter catalogue, flow definitions, and
// deployment records in badger under per-record-type key prefixes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"

	"github.com/interlace-io/interlace/internal/domain"
)

type AdapterStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewAdapterStore(db *badger.DB, logger *slog.Logger) *AdapterStore {
	return &AdapterStore{
		db:     db,
		logger: logger.With("component", "adapter-store"),
	}
}

func adapterKey(id string) []byte {
	return []byte("adapter:" + id)
}

// auditKey embeds a nanosecond timestamp so lexical order is append order.
func auditKey(adapterID string, at time.Time) []byte {
	return []byte(fmt.Sprintf("audit:%s:%020d", adapterID, at.UnixNano()))
}

func (s *AdapterStore) GetAdapter(ctx context.Context, id string) (*domain.Adapter, error) {
	var adapter domain.Adapter

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(adapterKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &adapter)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("adapter", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_adapter", id, err)
	}
	return &adapter, nil
}

func (s *AdapterStore) ListAdapters(ctx context.Context) ([]domain.Adapter, error) {
	var adapters []domain.Adapter

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("adapter:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var adapter domain.Adapter
			if err := json.Unmarshal(data, &adapter); err != nil {
				return err
			}
			adapters = append(adapters, adapter)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_adapters", "adapter:", err)
	}
	return adapters, nil
}

func (s *AdapterStore) SaveAdapter(ctx context.Context, adapter *domain.Adapter) error {
	if adapter.ID == "" {
		return domain.NewValidationError("adapter id is required")
	}
	if adapter.CreatedAt.IsZero() {
		adapter.CreatedAt = time.Now()
	}
	adapter.UpdatedAt = time.Now()

	data, err := json.Marshal(adapter)
	if err != nil {
		return domain.NewStorageError("save_adapter", adapter.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(adapterKey(adapter.ID), data)
	})
	if err != nil {
		return domain.NewStorageError("save_adapter", adapter.ID, err)
	}
	return nil
}

// UpdateStatus is the single atomic status write: read-modify-write inside
// one badger transaction.
func (s *AdapterStore) UpdateStatus(ctx context.Context, id string, status domain.AdapterStatus) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(adapterKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		var adapter domain.Adapter
		if err := json.Unmarshal(data, &adapter); err != nil {
			return err
		}

		adapter.Status = status
		adapter.UpdatedAt = time.Now()

		updated, err := json.Marshal(&adapter)
		if err != nil {
			return err
		}
		return txn.Set(adapterKey(id), updated)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("adapter", id)
	}
	if err != nil {
		return domain.NewStorageError("update_status", id, err)
	}
	return nil
}

func (s *AdapterStore) SetActive(ctx context.Context, id string, active bool) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(adapterKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		var adapter domain.Adapter
		if err := json.Unmarshal(data, &adapter); err != nil {
			return err
		}

		adapter.Active = active
		adapter.UpdatedAt = time.Now()

		updated, err := json.Marshal(&adapter)
		if err != nil {
			return err
		}
		return txn.Set(adapterKey(id), updated)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("adapter", id)
	}
	if err != nil {
		return domain.NewStorageError("set_active", id, err)
	}
	return nil
}

func (s *AdapterStore) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return domain.NewStorageError("append_audit", entry.AdapterID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(auditKey(entry.AdapterID, entry.At), data)
	})
	if err != nil {
		return domain.NewStorageError("append_audit", entry.AdapterID, err)
	}
	return nil
}

func (s *AdapterStore) ListAudit(ctx context.Context, adapterID string) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("audit:" + adapterID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry domain.AuditEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_audit", adapterID, err)
	}
	return entries, nil
}
