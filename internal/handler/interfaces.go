package handler

import (
	"context"

	"github.com/mishasvintus/access_mirror/internal/domain"
	"github.com/mishasvintus/access_mirror/internal/executor"
	"github.com/mishasvintus/access_mirror/internal/service"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// SyncServiceInterface defines the interface for sync operations.
type SyncServiceInterface interface {
	SyncMembership(ctx context.Context, groupID string, progress executor.ProgressFunc) (*domain.SyncSummary, error)
	SyncCorrelations(ctx context.Context, groupID string, q service.Query, progress executor.ProgressFunc) (*domain.CorrelationSummary, error)
}

// QueryServiceInterface defines the interface for reading mirrored data.
type QueryServiceInterface interface {
	ListMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	ListCorrelations(ctx context.Context, memberID int64) ([]domain.CorrelationItem, error)
	GroupStats(ctx context.Context, groupID string) (*service.GroupStatistics, error)
}
