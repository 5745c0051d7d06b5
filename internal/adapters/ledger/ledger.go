// Package ledger persists execution and step records in badger. Keys are
// prefixed so per-run and per-flow scans are single prefix iterations:
//
//	execution:<executionID>            -> FlowExecution
//	execflow:<flowID>:<executionID>    -> executionID (index)
//	step:<executionID>:<sequence>      -> FlowExecutionStep
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"

	"github.com/interlace-io/interlace/internal/domain"
)

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewStore(db *badger.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "ledger"),
	}
}

func executionKey(id string) []byte {
	return []byte("execution:" + id)
}

func flowIndexKey(flowID, executionID string) []byte {
	return []byte("execflow:" + flowID + ":" + executionID)
}

// stepKey pads the sequence so lexical badger order is sequence order.
func stepKey(executionID string, sequence int) []byte {
	return []byte(fmt.Sprintf("step:%s:%05d", executionID, sequence))
}

func stepPrefix(executionID string) []byte {
	return []byte("step:" + executionID + ":")
}

func (s *Store) CreateExecution(ctx context.Context, exec *domain.FlowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return domain.NewStorageError("create_execution", exec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(executionKey(exec.ID), data); err != nil {
			return err
		}
		return txn.Set(flowIndexKey(exec.FlowID, exec.ID), []byte(exec.ID))
	})
	if err != nil {
		return domain.NewStorageError("create_execution", exec.ID, err)
	}
	return nil
}

func (s *Store) UpdateExecution(ctx context.Context, exec *domain.FlowExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return domain.NewStorageError("update_execution", exec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(executionKey(exec.ID)); err != nil {
			return err
		}
		return txn.Set(executionKey(exec.ID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("execution", exec.ID)
	}
	if err != nil {
		return domain.NewStorageError("update_execution", exec.ID, err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*domain.FlowExecution, error) {
	var exec domain.FlowExecution

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(executionKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &exec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("execution", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_execution", id, err)
	}
	return &exec, nil
}

func (s *Store) ListExecutionsByFlow(ctx context.Context, flowID string) ([]domain.FlowExecution, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("execflow:" + flowID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(id))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_executions", flowID, err)
	}

	executions := make([]domain.FlowExecution, 0, len(ids))
	for _, id := range ids {
		exec, err := s.GetExecution(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				s.logger.Warn("dangling execution index entry", "flow_id", flowID, "execution_id", id)
				continue
			}
			return nil, err
		}
		executions = append(executions, *exec)
	}
	return executions, nil
}

func (s *Store) CreateStep(ctx context.Context, step *domain.FlowExecutionStep) error {
	data, err := json.Marshal(step)
	if err != nil {
		return domain.NewStorageError("create_step", step.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stepKey(step.ExecutionID, step.Sequence), data)
	})
	if err != nil {
		return domain.NewStorageError("create_step", step.ID, err)
	}
	return nil
}

func (s *Store) UpdateStep(ctx context.Context, step *domain.FlowExecutionStep) error {
	return s.CreateStep(ctx, step)
}

func (s *Store) ListSteps(ctx context.Context, executionID string) ([]domain.FlowExecutionStep, error) {
	var steps []domain.FlowExecutionStep

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = stepPrefix(executionID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var step domain.FlowExecutionStep
			if err := json.Unmarshal(data, &step); err != nil {
				return err
			}
			steps = append(steps, step)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_steps", executionID, err)
	}
	return steps, nil
}

func (s *Store) DeleteSteps(ctx context.Context, executionID string) (int, error) {
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = stepPrefix(executionID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("delete_steps", executionID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("delete_steps", executionID, err)
	}
	return len(keys), nil
}

func (s *Store) ExecutionTotals(ctx context.Context, executionID string) (int64, int64, error) {
	steps, err := s.ListSteps(ctx, executionID)
	if err != nil {
		return 0, 0, err
	}

	var files, bytes int64
	for _, step := range steps {
		files += step.FilesProcessed
		bytes += step.BytesProcessed
	}
	return files, bytes, nil
}
