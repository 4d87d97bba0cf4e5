package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/approvisionnement/internal/observability"
)

type stubDB struct {
	rows     []Record
	queries  []string
	args     [][]interface{}
	execTag  string
	execErr  error
	queryErr error
	commits  int
}

func (s *stubDB) record(sql string, args []interface{}) {
	s.queries = append(s.queries, sql)
	s.args = append(s.args, args)
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	s.record(sql, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag(s.execTag), nil
}

func (s *stubDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	s.record(sql, args)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{records: s.rows, index: -1}, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	s.record(sql, args)
	if s.queryErr != nil {
		return &stubRow{err: s.queryErr}
	}
	if len(s.rows) == 0 {
		return &stubRow{err: pgx.ErrNoRows}
	}
	return &stubRow{rec: s.rows[0]}
}

func (s *stubDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return &stubTx{db: s}, nil
}

// stubTx routes statements to the parent stubDB. Unused pgx.Tx methods
// panic through the nil embedded interface.
type stubTx struct {
	pgx.Tx
	db *stubDB
}

func (t *stubTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *stubTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *stubTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *stubTx) Commit(context.Context) error {
	t.db.commits++
	return nil
}

func (t *stubTx) Rollback(context.Context) error {
	return nil
}

type stubRows struct {
	records []Record
	index   int
}

func (r *stubRows) Close()                                       { r.index = len(r.records) }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.index+1 >= len(r.records) {
		r.index = len(r.records)
		return false
	}
	r.index++
	return true
}

func (r *stubRows) Scan(dest ...interface{}) error {
	if r.index < 0 || r.index >= len(r.records) {
		return fmt.Errorf("no row available")
	}
	return scanStub(r.records[r.index], dest)
}

func (r *stubRows) Values() ([]interface{}, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubRow struct {
	rec Record
	err error
}

func (r *stubRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return scanStub(r.rec, dest)
}

// scanStub fills dest in recordColumns order.
func scanStub(rec Record, dest []interface{}) error {
	lines, err := json.Marshal(nonNilLines(rec.Lines))
	if err != nil {
		return err
	}
	values := []interface{}{rec.ID, rec.Reference, rec.Date, rec.SupplierID, rec.SupplierName, rec.Notes,
		lines, rec.TotalAmount, string(rec.Status), rec.CreatedAt, rec.UpdatedAt}
	if len(dest) != len(values) {
		return fmt.Errorf("expected %d destinations, got %d", len(values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = values[i].(string)
		case *[]byte:
			*p = values[i].([]byte)
		case *float64:
			*p = values[i].(float64)
		case *time.Time:
			*p = values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func storedRecord() Record {
	return Record{
		ID:          "rec-1",
		Reference:   "APP-202401-001",
		Date:        "2024-01-15",
		SupplierID:  "1",
		Lines:       []LineItem{{ArticleID: "1", Quantity: 2, UnitPrice: 5000, Amount: 10000}},
		TotalAmount: 10000,
		Status:      StatusPending,
		CreatedAt:   fixedClock(),
		UpdatedAt:   fixedClock(),
	}
}

func TestPostgresStoreListBuildsQuery(t *testing.T) {
	stub := &stubDB{rows: []Record{storedRecord()}}
	store := newPostgresStore(stub, stub)

	recs, err := store.List(context.Background(), Query{
		SupplierID:    "2",
		Status:        StatusPending,
		ReferenceLike: "202401",
		Sort:          SortTotal,
		Order:         "desc",
		Page:          2,
		Limit:         5,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "APP-202401-001", recs[0].Reference)
	require.Equal(t, 10000.0, recs[0].Lines[0].Amount)

	require.Equal(t, "SELECT "+recordColumns+" FROM approvisionnements"+
		" WHERE supplier_id = $1 AND status = $2 AND reference ILIKE '%' || $3 || '%'"+
		" ORDER BY total_amount DESC, created_at ASC LIMIT $4 OFFSET $5", stub.queries[0])
	require.Equal(t, []interface{}{"2", "En attente", "202401", 5, 5}, stub.args[0])
}

func TestPostgresStoreListIgnoresUnknownSort(t *testing.T) {
	stub := &stubDB{}
	store := newPostgresStore(stub, stub)

	recs, err := store.List(context.Background(), Query{Sort: "id; DROP TABLE approvisionnements"})
	require.NoError(t, err)
	require.Empty(t, recs)
	require.True(t, strings.HasSuffix(stub.queries[0], " ORDER BY created_at ASC, id ASC"))
	require.NotContains(t, stub.queries[0], "DROP")
	require.NotContains(t, stub.queries[0], "LIMIT")
	require.Empty(t, stub.args[0])
}

func TestPostgresStoreCreate(t *testing.T) {
	stub := &stubDB{execTag: "INSERT 0 1"}
	store := newPostgresStore(stub, stub)

	rec, err := store.Create(context.Background(), Record{Reference: "APP-202401-001", Status: StatusPending})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Contains(t, stub.queries[0], "INSERT INTO approvisionnements")
	require.Equal(t, rec.ID, stub.args[0][0])
	require.Equal(t, []byte("[]"), stub.args[0][6])

	stub.execErr = &pgconn.PgError{Code: uniqueViolation}
	_, err = store.Create(context.Background(), Record{Reference: "APP-202401-001"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestPostgresStoreUpdateLocksRow(t *testing.T) {
	stub := &stubDB{rows: []Record{storedRecord()}, execTag: "UPDATE 1"}
	store := newPostgresStore(stub, stub)

	status := StatusReceived
	updated, err := store.Update(context.Background(), "rec-1", Patch{Status: &status})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, updated.Status)
	require.Equal(t, "APP-202401-001", updated.Reference)
	require.Equal(t, 1, stub.commits)

	require.Contains(t, stub.queries[0], "FOR UPDATE")
	require.True(t, strings.HasPrefix(stub.queries[1], "UPDATE approvisionnements"))
	require.Equal(t, "rec-1", stub.args[1][0])
	require.Equal(t, "Reçu", stub.args[1][8])

	missing := &stubDB{}
	_, err = newPostgresStore(missing, missing).Update(context.Background(), "nope", Patch{Status: &status})
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, missing.commits)
	require.Len(t, missing.queries, 1)
}

func TestPostgresStoreDelete(t *testing.T) {
	stub := &stubDB{execTag: "DELETE 1"}
	store := newPostgresStore(stub, stub)
	require.NoError(t, store.Delete(context.Background(), "rec-1"))
	require.Equal(t, []interface{}{"rec-1"}, stub.args[0])

	stub.execTag = "DELETE 0"
	require.ErrorIs(t, store.Delete(context.Background(), "rec-1"), ErrNotFound)
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	stub := &stubDB{}
	_, err := newPostgresStore(stub, stub).Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreTransportFailures(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	stub := &stubDB{queryErr: dial, execErr: dial}
	store := newPostgresStore(stub, stub)
	ctx := context.Background()

	_, err := store.List(ctx, Query{})
	require.ErrorIs(t, err, ErrTransport)
	_, err = store.Get(ctx, "rec-1")
	require.ErrorIs(t, err, ErrTransport)
	_, err = store.Create(ctx, Record{Reference: "APP-202401-001"})
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, store.Delete(ctx, "rec-1"), ErrTransport)

	status := StatusCancelled
	_, err = store.Update(ctx, "rec-1", Patch{Status: &status})
	require.ErrorIs(t, err, ErrTransport)

	stub.queryErr = fmt.Errorf("query: %w", context.DeadlineExceeded)
	_, err = store.List(ctx, Query{})
	require.ErrorIs(t, err, ErrTransport)

	stub.queryErr = &pgconn.PgError{Code: "42P01"}
	_, err = store.List(ctx, Query{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTransport)
}

func TestServiceCountsPostgresTransportFailures(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	stub := &stubDB{queryErr: dial}
	metrics := observability.NewMetrics()
	svc := NewService(newPostgresStore(stub, stub), nil, WithClock(fixedClock), WithMetrics(metrics))

	_, err := svc.Get(context.Background(), "rec-1")
	require.ErrorIs(t, err, ErrTransport)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), `approvisionnement_collaborator_failures_total{operation="get"} 1`)
}

func TestMapPgError(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "approvisionnements_reference_key"})
	require.ErrorIs(t, mapPgError(dup, "APP-202401-001"), ErrConflict)

	other := &pgconn.PgError{Code: "23502"}
	err := mapPgError(other, "APP-202401-001")
	require.NotErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrTransport)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
}

func TestNonNilLines(t *testing.T) {
	require.NotNil(t, nonNilLines(nil))
	require.Len(t, nonNilLines([]LineItem{{ArticleID: "1"}}), 1)
}
