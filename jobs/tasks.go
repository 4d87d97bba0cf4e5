package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogWarmup refreshes the cached supplier and article lists.
	TaskCatalogWarmup = "catalog:warmup"
	// TaskRecordsExport writes a record export to the blob store.
	TaskRecordsExport = "procurement:export"
)

// CatalogWarmupPayload controls a warmup run.
type CatalogWarmupPayload struct {
	Invalidate bool `json:"invalidate"`
}

// NewCatalogWarmupTask builds a warmup task. Invalidate bumps the cache
// version first so stale entries are not served.
func NewCatalogWarmupTask(invalidate bool) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogWarmupPayload{Invalidate: invalidate})
	if err != nil {
		return nil, fmt.Errorf("jobs: encode warmup payload: %w", err)
	}
	return asynq.NewTask(TaskCatalogWarmup, body, asynq.Queue(QueueDefault)), nil
}

// RecordsExportPayload selects the records and format of an export.
type RecordsExportPayload struct {
	Format     string `json:"format"`
	Search     string `json:"search,omitempty"`
	SupplierID string `json:"fournisseurId,omitempty"`
	Status     string `json:"statut,omitempty"`
	DateFrom   string `json:"dateDebut,omitempty"`
	DateTo     string `json:"dateFin,omitempty"`
}

// NewRecordsExportTask builds an export task.
func NewRecordsExportTask(payload RecordsExportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode export payload: %w", err)
	}
	return asynq.NewTask(TaskRecordsExport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
