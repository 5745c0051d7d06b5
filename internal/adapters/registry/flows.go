package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/interlace-io/interlace/internal/domain"
)

type FlowStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewFlowStore(db *badger.DB, logger *slog.Logger) *FlowStore {
	return &FlowStore{
		db:     db,
		logger: logger.With("component", "flow-store"),
	}
}

func flowKey(id string) []byte {
	return []byte("flow:" + id)
}

func (s *FlowStore) GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error) {
	var flow domain.FlowDefinition

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flowKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &flow)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("flow", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_flow", id, err)
	}
	return &flow, nil
}

func (s *FlowStore) ListFlows(ctx context.Context) ([]domain.FlowDefinition, error) {
	var flows []domain.FlowDefinition

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("flow:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var flow domain.FlowDefinition
			if err := json.Unmarshal(data, &flow); err != nil {
				return err
			}
			flows = append(flows, flow)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_flows", "flow:", err)
	}
	return flows, nil
}

// SaveFlow bumps the version counter on every write so deployments can pin
// the exact graph revision they snapshotted.
func (s *FlowStore) SaveFlow(ctx context.Context, flow *domain.FlowDefinition) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now()
	}
	flow.UpdatedAt = time.Now()
	flow.Version++

	data, err := json.Marshal(flow)
	if err != nil {
		return domain.NewStorageError("save_flow", flow.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(flowKey(flow.ID), data)
	})
	if err != nil {
		return domain.NewStorageError("save_flow", flow.ID, err)
	}
	return nil
}

func (s *FlowStore) DeleteFlow(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(flowKey(id)); err != nil {
			return err
		}
		return txn.Delete(flowKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("flow", id)
	}
	if err != nil {
		return domain.NewStorageError("delete_flow", id, err)
	}
	return nil
}
