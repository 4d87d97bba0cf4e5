package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/approvisionnement/internal/catalog"
	jobmetrics "github.com/odyssey-erp/approvisionnement/internal/jobs"
	"github.com/odyssey-erp/approvisionnement/internal/platform/blob"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
)

type fakeWarmer struct {
	invalidated int
	warmed      int
	err         error
}

func (f *fakeWarmer) Invalidate(context.Context) error {
	f.invalidated++
	return nil
}

func (f *fakeWarmer) Warm(context.Context) (int, int, error) {
	f.warmed++
	return 4, 8, f.err
}

func TestCatalogWarmupJob(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewCatalogWarmupJob(warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewCatalogWarmupTask(true)
	require.NoError(t, err)
	require.Equal(t, TaskCatalogWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.invalidated)
	require.Equal(t, 1, warmer.warmed)

	warmer.err = errors.New("redis down")
	task, err = NewCatalogWarmupTask(false)
	require.NoError(t, err)
	require.ErrorContains(t, job.Handle(context.Background(), task), "redis down")
	require.Equal(t, 1, warmer.invalidated)
}

func TestCatalogWarmupRejectsBadPayload(t *testing.T) {
	job := NewCatalogWarmupJob(&fakeWarmer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRecordsExportJob(t *testing.T) {
	store, err := procurement.NewMemoryStore(
		procurement.Record{Reference: "APP-202401-001", Date: "2024-01-03", SupplierID: "1", TotalAmount: 25000, Status: procurement.StatusPending},
		procurement.Record{Reference: "APP-202401-002", Date: "2024-01-09", SupplierID: "2", TotalAmount: 8000, Status: procurement.StatusReceived},
	)
	require.NoError(t, err)
	svc := procurement.NewService(store, catalog.DefaultSnapshot())
	fs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	job := NewRecordsExportJob(svc, fs, nil, jobmetrics.NewMetrics(reg))
	job.clock = func() time.Time { return time.Date(2024, time.January, 31, 23, 0, 0, 0, time.UTC) }

	location, count, err := job.Run(context.Background(), RecordsExportPayload{Format: procurement.FormatCSV, Status: string(procurement.StatusReceived)})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, location, "exports/2024/01/31/approvisionnements-")
	require.True(t, strings.HasSuffix(location, ".csv"))

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Equal(t, "Référence,Date,Fournisseur,Montant Total,Statut\nAPP-202401-002,2024-01-09,Mercerie Centrale,8000,Reçu\n", string(data))

	body, err := json.Marshal(RecordsExportPayload{Format: "pdf"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskRecordsExport, body)), asynq.SkipRetry)

	task, err := NewRecordsExportTask(RecordsExportPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	series, err := testutil.GatherAndCount(reg, "approvisionnement_exports_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}

func TestExportKey(t *testing.T) {
	key := ExportKey(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), procurement.FormatXLSX)
	require.True(t, strings.HasPrefix(key, "exports/2024/03/05/approvisionnements-"))
	require.True(t, strings.HasSuffix(key, ".xlsx"))
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0}`, rr.Body.String())
}

type fakeEnqueuer struct {
	exports    []RecordsExportPayload
	invalidate []bool
	err        error
}

func (f *fakeEnqueuer) EnqueueCatalogWarmup(_ context.Context, invalidate bool) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.invalidate = append(f.invalidate, invalidate)
	return &asynq.TaskInfo{ID: "w1", Type: TaskCatalogWarmup, Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) EnqueueRecordsExport(_ context.Context, payload RecordsExportPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.exports = append(f.exports, payload)
	return &asynq.TaskInfo{ID: "e1", Type: TaskRecordsExport, Queue: QueueDefault}, nil
}

func jobsRouter(enq Enqueuer) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enq, nil).MountRoutes)
	return r
}

func TestEnqueueExportEndpoint(t *testing.T) {
	enq := &fakeEnqueuer{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/exports", strings.NewReader(`{"statut":"Reçu"}`))
	jobsRouter(enq).ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":"e1","type":"procurement:export","queue":"default"}`, rr.Body.String())
	require.Len(t, enq.exports, 1)
	require.Equal(t, procurement.FormatCSV, enq.exports[0].Format)
	require.Equal(t, "Reçu", enq.exports[0].Status)
}

func TestEnqueueExportRejectsFormat(t *testing.T) {
	enq := &fakeEnqueuer{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/exports", strings.NewReader(`{"format":"pdf"}`))
	jobsRouter(enq).ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, enq.exports)
}

func TestEnqueueWarmupEndpoint(t *testing.T) {
	enq := &fakeEnqueuer{}
	rr := httptest.NewRecorder()
	jobsRouter(enq).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/catalog-warmup?invalidate=true", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []bool{true}, enq.invalidate)

	rr = httptest.NewRecorder()
	jobsRouter(&fakeEnqueuer{err: errors.New("redis down")}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/catalog-warmup", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestEnqueueWithoutQueue(t *testing.T) {
	rr := httptest.NewRecorder()
	jobsRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/exports", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
