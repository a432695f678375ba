// Package database provides the data access layer for stored reports,
// API keys and audit logs.
package database

import (
	"context"
	"time"

	"github.com/videoforensics/veriscope/internal/models"
)

// Store defines the interface for data persistence. Reports are write-once:
// saved when a pipeline run completes and never updated.
type Store interface {
	// Reports
	SaveReport(ctx context.Context, report *models.FinalReport) error
	GetReport(ctx context.Context, id string) (*models.FinalReport, error)
	ListReports(ctx context.Context, limit, offset int) ([]*models.ReportSummary, error)

	// API Keys
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string, t time.Time) error
	DeleteAPIKey(ctx context.Context, id string) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)

	// Audit logs
	LogRequest(ctx context.Context, log *models.AuditLog) error
	GetAuditLogs(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)

	// Lifecycle
	Close() error
	Migrate() error
}
