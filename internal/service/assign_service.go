package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"go.uber.org/zap"
)

// EdgeTunnelStore manages EdgeTunnel groups and user-node assignments
type EdgeTunnelStore interface {
	GetPlanGroupIDs(ctx context.Context, planID int64) ([]int64, error)
	GetDefaultGroupID(ctx context.Context) (int64, error)
	GetActiveGroup(ctx context.Context, groupID int64) (*models.NodeGroup, error)
	ListActiveNodeIDs(ctx context.Context, groupID int64) ([]int64, error)
	AssignNode(ctx context.Context, userID, groupID, nodeID int64) (bool, error)
}

// UUIDRegistrar registers a user UUID with a group's EdgeTunnel API
type UUIDRegistrar interface {
	AddUUID(ctx context.Context, group *models.NodeGroup, userUUID string) error
}

// AssignmentResult summarizes one AutoAssign call
type AssignmentResult struct {
	UUID          string
	GroupIDs      []int64
	NodesAssigned int
}

// AssignmentService binds users to EdgeTunnel node groups after purchase
type AssignmentService struct {
	store     EdgeTunnelStore
	registrar UUIDRegistrar
	logger    *zap.Logger
}

func NewAssignmentService(store EdgeTunnelStore, registrar UUIDRegistrar, logger *zap.Logger) *AssignmentService {
	return &AssignmentService{
		store:     store,
		registrar: registrar,
		logger:    logger.Named("assign"),
	}
}

// AutoAssign binds the user to every active node of the plan's groups, or of
// the default group when the plan names none, and registers one fresh UUID
// with each group's API. It keeps going past per-group failures and returns
// them joined alongside whatever was assigned.
func (s *AssignmentService) AutoAssign(ctx context.Context, userID, planID int64) (*AssignmentResult, error) {
	// 1. Resolve groups
	groupIDs, err := s.store.GetPlanGroupIDs(ctx, planID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load plan groups: %w", err)
	}
	if len(groupIDs) == 0 {
		defaultID, err := s.store.GetDefaultGroupID(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoNodeGroup
			}
			return nil, fmt.Errorf("load default group: %w", err)
		}
		groupIDs = []int64{defaultID}
	}

	result := &AssignmentResult{UUID: uuid.New().String()}
	var errs []error

	for _, groupID := range groupIDs {
		// 2. Group must exist and be active
		group, err := s.store.GetActiveGroup(ctx, groupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("node group missing or inactive", zap.Int64("group_id", groupID))
				continue
			}
			errs = append(errs, fmt.Errorf("group %d: %w", groupID, err))
			continue
		}

		// 3. Assign every active node
		nodeIDs, err := s.store.ListActiveNodeIDs(ctx, groupID)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %d: %w", groupID, err))
			continue
		}
		for _, nodeID := range nodeIDs {
			created, err := s.store.AssignNode(ctx, userID, groupID, nodeID)
			if err != nil {
				errs = append(errs, fmt.Errorf("group %d node %d: %w", groupID, nodeID, err))
				continue
			}
			if created {
				result.NodesAssigned++
			}
		}
		result.GroupIDs = append(result.GroupIDs, groupID)

		// 4. 同步到外部 EdgeTunnel Multi-UUID 服务
		if group.APIEndpoint == "" || s.registrar == nil {
			continue
		}
		if err := s.registrar.AddUUID(ctx, group, result.UUID); err != nil {
			errs = append(errs, fmt.Errorf("group %d uuid sync: %w", groupID, err))
		}
	}

	s.logger.Info("edgetunnel auto-assign finished",
		zap.Int64("user_id", userID),
		zap.Int64("plan_id", planID),
		zap.Int64s("group_ids", result.GroupIDs),
		zap.Int("nodes_assigned", result.NodesAssigned),
		zap.Int("errors", len(errs)))

	return result, errors.Join(errs...)
}
