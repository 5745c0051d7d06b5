package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"

	"github.com/interlace-io/interlace/internal/domain"
)

type DeploymentStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewDeploymentStore(db *badger.DB, logger *slog.Logger) *DeploymentStore {
	return &DeploymentStore{
		db:     db,
		logger: logger.With("component", "deployment-store"),
	}
}

func deploymentKey(id string) []byte {
	return []byte("deployment:" + id)
}

// depFlowKey indexes deployments by flow so GetDeploymentsByFlow is a single
// prefix scan.
func depFlowKey(flowID, deploymentID string) []byte {
	return []byte("depflow:" + flowID + ":" + deploymentID)
}

func (s *DeploymentStore) GetDeployment(ctx context.Context, id string) (*domain.DeployedFlow, error) {
	var deployment domain.DeployedFlow

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deploymentKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &deployment)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("deployment", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_deployment", id, err)
	}
	return &deployment, nil
}

func (s *DeploymentStore) GetDeploymentsByFlow(ctx context.Context, flowID string) ([]domain.DeployedFlow, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("depflow:" + flowID + ":")
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
		return nil, domain.NewStorageError("deployments_by_flow", flowID, err)
	}

	deployments := make([]domain.DeployedFlow, 0, len(ids))
	for _, id := range ids {
		deployment, err := s.GetDeployment(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				s.logger.Warn("dangling deployment index entry", "flow_id", flowID, "deployment_id", id)
				continue
			}
			return nil, err
		}
		deployments = append(deployments, *deployment)
	}
	return deployments, nil
}

func (s *DeploymentStore) ListDeployments(ctx context.Context) ([]domain.DeployedFlow, error) {
	var deployments []domain.DeployedFlow

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("deployment:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var deployment domain.DeployedFlow
			if err := json.Unmarshal(data, &deployment); err != nil {
				return err
			}
			deployments = append(deployments, deployment)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_deployments", "deployment:", err)
	}
	return deployments, nil
}

func (s *DeploymentStore) SaveDeployment(ctx context.Context, deployment *domain.DeployedFlow) error {
	data, err := json.Marshal(deployment)
	if err != nil {
		return domain.NewStorageError("save_deployment", deployment.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(deploymentKey(deployment.ID), data); err != nil {
			return err
		}
		return txn.Set(depFlowKey(deployment.FlowID, deployment.ID), []byte(deployment.ID))
	})
	if err != nil {
		return domain.NewStorageError("save_deployment", deployment.ID, err)
	}
	return nil
}

func (s *DeploymentStore) DeleteDeployment(ctx context.Context, id string) error {
	deployment, err := s.GetDeployment(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(deploymentKey(id)); err != nil {
			return err
		}
		return txn.Delete(depFlowKey(deployment.FlowID, id))
	})
	if err != nil {
		return domain.NewStorageError("delete_deployment", id, err)
	}
	return nil
}
