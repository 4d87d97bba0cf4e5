package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/approvisionnement/internal/jobs"
	"github.com/odyssey-erp/approvisionnement/internal/platform/blob"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
)

// Exporter renders the records matching a filter set.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, format string, f procurement.Filters) (int, error)
}

// RecordsExportJob writes record exports to a blob store.
type RecordsExportJob struct {
	Exporter Exporter
	Store    blob.Store
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewRecordsExportJob wires dependencies for the export handler.
func NewRecordsExportJob(exporter Exporter, store blob.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecordsExportJob {
	return &RecordsExportJob{Exporter: exporter, Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes export tasks.
func (j *RecordsExportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Exporter == nil || j.Store == nil {
		return errors.New("records export: handler not configured")
	}
	var payload RecordsExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Format == "" {
		payload.Format = procurement.FormatCSV
	}
	if payload.Format != procurement.FormatCSV && payload.Format != procurement.FormatXLSX {
		return asynq.SkipRetry
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskRecordsExport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := loggerOrDefault(j.Logger, TaskRecordsExport)

	location, count, err := j.Run(ctx, payload)
	if err != nil {
		logger.Error("export records", slog.Any("error", err))
		return err
	}
	metrics.ObserveExport(payload.Format, count)
	logger.Info("records exported", slog.String("location", location), slog.Int("records", count))
	return nil
}

// Run renders the export described by payload and stores it.
func (j *RecordsExportJob) Run(ctx context.Context, payload RecordsExportPayload) (string, int, error) {
	var buf bytes.Buffer
	count, err := j.Exporter.Export(ctx, &buf, payload.Format, procurement.Filters{
		Search:     payload.Search,
		SupplierID: payload.SupplierID,
		Status:     procurement.Status(payload.Status),
		DateFrom:   payload.DateFrom,
		DateTo:     payload.DateTo,
	})
	if err != nil {
		return "", 0, err
	}
	key := ExportKey(j.now(), payload.Format)
	location, err := j.Store.Put(ctx, key, procurement.ContentType(payload.Format), buf.Bytes())
	if err != nil {
		return "", 0, err
	}
	return location, count, nil
}

// ExportKey names an export object: exports/YYYY/MM/DD/approvisionnements-<uuid>.<format>.
func ExportKey(now time.Time, format string) string {
	return now.Format("exports/2006/01/02/") + "approvisionnements-" + uuid.NewString() + "." + format
}

func (j *RecordsExportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
