package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/approvisionnement/internal/platform/db"
)

// Schema creates the table backing PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS approvisionnements (
	id            TEXT PRIMARY KEY,
	reference     TEXT NOT NULL,
	date          TEXT NOT NULL,
	supplier_id   TEXT NOT NULL,
	supplier_name TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	lines         JSONB NOT NULL DEFAULT '[]',
	total_amount  DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS approvisionnements_reference_key ON approvisionnements (reference);
CREATE INDEX IF NOT EXISTS approvisionnements_supplier_idx ON approvisionnements (supplier_id);
`

const recordColumns = `id, reference, date, supplier_id, supplier_name, notes, lines, total_amount, status, created_at, updated_at`

const uniqueViolation = "23505"

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db    dbtx
	begin db.Beginner
}

// NewPostgresStore constructs a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(pool, pool)
}

func newPostgresStore(conn dbtx, begin db.Beginner) *PostgresStore {
	return &PostgresStore{db: conn, begin: begin}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return wrapPgError("migrate", err)
	}
	return nil
}

// WithTx runs fn against a transactional copy of the store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(context.Context, *PostgresStore) error) error {
	err := db.WithTx(ctx, s.begin, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{db: tx, begin: s.begin})
	})
	if err != nil && isTransportError(err) && !errors.Is(err, ErrTransport) {
		return wrapPgError("transaction", err)
	}
	return err
}

var sortColumns = map[string]string{
	SortReference: "reference",
	SortDate:      "date",
	SortTotal:     "total_amount",
	SortCreatedAt: "created_at",
}

// List runs q as SQL.
func (s *PostgresStore) List(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.SupplierID != "" {
		add("supplier_id = $%d", q.SupplierID)
	}
	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}
	if q.Reference != "" {
		add("reference = $%d", q.Reference)
	}
	if q.ReferenceLike != "" {
		add("reference ILIKE '%%' || $%d || '%%'", q.ReferenceLike)
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + recordColumns + " FROM approvisionnements")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if col, ok := sortColumns[q.Sort]; ok {
		dir := "ASC"
		if strings.EqualFold(q.Order, "desc") {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY " + col + " " + dir + ", created_at ASC")
	} else {
		sb.WriteString(" ORDER BY created_at ASC, id ASC")
	}
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		args = append(args, q.Limit, (page-1)*q.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapPgError("list records", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapPgError("scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError("list records", err)
	}
	return out, nil
}

// Get loads a record by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRow(ctx, "SELECT "+recordColumns+" FROM approvisionnements WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
		}
		return Record{}, wrapPgError("get record", err)
	}
	return rec, nil
}

// Create inserts rec. A duplicate reference maps to ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	lines, err := json.Marshal(nonNilLines(rec.Lines))
	if err != nil {
		return Record{}, fmt.Errorf("procurement: encode lines: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO approvisionnements (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.Reference, rec.Date, rec.SupplierID, rec.SupplierName, rec.Notes,
		lines, rec.TotalAmount, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return Record{}, mapPgError(err, rec.Reference)
	}
	return rec, nil
}

// Update applies patch inside a transaction so the merge reads its own row.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	var updated Record
	err := s.WithTx(ctx, func(ctx context.Context, tx *PostgresStore) error {
		row := tx.db.QueryRow(ctx, "SELECT "+recordColumns+" FROM approvisionnements WHERE id = $1 FOR UPDATE", id)
		current, err := scanRecord(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
			}
			return wrapPgError("lock record", err)
		}
		next := patch.Apply(current)
		lines, err := json.Marshal(nonNilLines(next.Lines))
		if err != nil {
			return fmt.Errorf("procurement: encode lines: %w", err)
		}
		_, err = tx.db.Exec(ctx, `UPDATE approvisionnements SET
			reference = $2, date = $3, supplier_id = $4, supplier_name = $5, notes = $6,
			lines = $7, total_amount = $8, status = $9, updated_at = $10
			WHERE id = $1`,
			id, next.Reference, next.Date, next.SupplierID, next.SupplierName, next.Notes,
			lines, next.TotalAmount, string(next.Status), next.UpdatedAt)
		if err != nil {
			return mapPgError(err, next.Reference)
		}
		updated = next
		return nil
	})
	return updated, err
}

// Delete removes a record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM approvisionnements WHERE id = $1", id)
	if err != nil {
		return wrapPgError("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		lines  []byte
		status string
	)
	if err := row.Scan(&rec.ID, &rec.Reference, &rec.Date, &rec.SupplierID, &rec.SupplierName, &rec.Notes,
		&lines, &rec.TotalAmount, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &rec.Lines); err != nil {
			return Record{}, fmt.Errorf("procurement: decode lines: %w", err)
		}
	}
	return rec, nil
}

func mapPgError(err error, reference string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("procurement: reference %q: %w", reference, ErrConflict)
	}
	return wrapPgError("write record", err)
}

// wrapPgError marks connection level failures as ErrTransport. Errors the
// server answered with (PgError) stay plain.
func wrapPgError(op string, err error) error {
	if isTransportError(err) {
		return fmt.Errorf("procurement: %s: %w: %w", op, ErrTransport, err)
	}
	return fmt.Errorf("procurement: %s: %w", op, err)
}

func isTransportError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func nonNilLines(lines []LineItem) []LineItem {
	if lines == nil {
		return []LineItem{}
	}
	return lines
}
