package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/approvisionnement/internal/catalog"
	"github.com/odyssey-erp/approvisionnement/internal/observability"
	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

const (
	// DefaultPageSize is the list page size used when none is requested.
	DefaultPageSize = 5
	// DefaultCreateAttempts bounds reference regeneration on create.
	DefaultCreateAttempts = 3
	dateLayout            = "2006-01-02"
)

// Service orchestrates procurement records over a Store.
type Service struct {
	store       Store
	catalog     catalog.Catalog
	validate    *validator.Validate
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       func() time.Time
	maxAttempts int
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCreateAttempts overrides DefaultCreateAttempts.
func WithCreateAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService constructs the procurement service. The catalog resolves
// supplier names and may be nil, in which case names are not snapshotted.
func NewService(store Store, cat catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		store:       store,
		catalog:     cat,
		validate:    newValidator(),
		logger:      slog.Default(),
		clock:       time.Now,
		maxAttempts: DefaultCreateAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

// observe counts transport failures and passes err through.
func (s *Service) observe(op string, err error) error {
	if err != nil && errors.Is(err, shared.ErrTransport) {
		s.metrics.RecordCollaboratorFailure(op)
		s.logger.Error("procurement store failure", slog.String("operation", op), slog.Any("error", err))
	}
	return err
}

// Create validates draft and persists it as a new record. When the draft has
// no reference one is generated, and regenerated on conflict up to the
// configured number of attempts.
func (s *Service) Create(ctx context.Context, draft Draft) (Record, error) {
	now := s.now()
	if draft.Date == "" {
		draft.Date = now.Format(dateLayout)
	}
	if draft.Status == "" {
		draft.Status = StatusPending
	}
	draft.Lines = recomputeLines(draft.Lines)
	if err := validateStruct(s.validate, draft); err != nil {
		return Record{}, fmt.Errorf("procurement: create: %w", err)
	}
	supplierName, err := s.supplierName(ctx, draft.SupplierID)
	if err != nil {
		return Record{}, fmt.Errorf("procurement: create: %w", err)
	}

	rec := Record{
		Date:         draft.Date,
		SupplierID:   draft.SupplierID,
		SupplierName: supplierName,
		Notes:        draft.Notes,
		Lines:        draft.Lines,
		TotalAmount:  sumLines(draft.Lines),
		Status:       draft.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	generated := draft.Reference == ""
	attempts := 1
	if generated {
		attempts = s.maxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rec.Reference = draft.Reference
		if generated {
			ref, err := s.NextReference(ctx)
			if err != nil {
				return Record{}, fmt.Errorf("procurement: create: %w", err)
			}
			rec.Reference = ref
		}
		created, err := s.store.Create(ctx, rec)
		if err == nil {
			s.metrics.RecordCreated()
			s.logger.Info("procurement record created",
				slog.String("id", created.ID),
				slog.String("reference", created.Reference),
				slog.Float64("total", created.TotalAmount))
			return created, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Record{}, s.observe("create", fmt.Errorf("procurement: create: %w", err))
		}
		lastErr = err
		s.metrics.RecordReferenceConflict()
		s.logger.Warn("procurement reference conflict",
			slog.String("reference", rec.Reference),
			slog.Int("attempt", attempt))
	}
	return Record{}, fmt.Errorf("procurement: create after %d attempts: %w", attempts, lastErr)
}

// Update merges patch into the record identified by id. Lines changes
// recompute amounts and the total; supplier changes refresh the name
// snapshot. UpdatedAt always moves strictly forward.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	if err := validateStruct(s.validate, patch); err != nil {
		return Record{}, fmt.Errorf("procurement: update: %w", err)
	}
	if patch.SupplierID != nil && *patch.SupplierID == "" {
		return Record{}, fmt.Errorf("procurement: update: %w", shared.FieldError("fournisseurId", "required"))
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, s.observe("get", fmt.Errorf("procurement: update: %w", err))
	}

	patch.TotalAmount = nil
	patch.SupplierName = nil
	if patch.Lines != nil {
		lines := recomputeLines(*patch.Lines)
		total := sumLines(lines)
		patch.Lines = &lines
		patch.TotalAmount = &total
	}
	if patch.SupplierID != nil && *patch.SupplierID != current.SupplierID {
		name, err := s.supplierName(ctx, *patch.SupplierID)
		if err != nil {
			return Record{}, fmt.Errorf("procurement: update: %w", err)
		}
		patch.SupplierName = &name
	}
	stamp := s.now()
	if !stamp.After(current.UpdatedAt) {
		stamp = current.UpdatedAt.Add(time.Millisecond)
	}
	patch.UpdatedAt = &stamp

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Record{}, s.observe("update", fmt.Errorf("procurement: update: %w", err))
	}
	s.logger.Info("procurement record updated", slog.String("id", id), slog.String("status", string(updated.Status)))
	return updated, nil
}

// ChangeStatus sets the status of a record.
func (s *Service) ChangeStatus(ctx context.Context, id string, status Status) (Record, error) {
	if !status.Valid() {
		return Record{}, fmt.Errorf("procurement: change status: %w", shared.FieldError("statut", "unknown status"))
	}
	return s.Update(ctx, id, Patch{Status: &status})
}

// ConfirmReception marks a record as received.
func (s *Service) ConfirmReception(ctx context.Context, id string) (Record, error) {
	return s.ChangeStatus(ctx, id, StatusReceived)
}

// Remove deletes a record by id.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.observe("delete", fmt.Errorf("procurement: remove: %w", err))
	}
	s.logger.Info("procurement record removed", slog.String("id", id))
	return nil
}

// RemoveByReference deletes the records carrying ref. It serves callers
// that only know the reference of a record.
func (s *Service) RemoveByReference(ctx context.Context, ref string) error {
	recs, err := s.store.List(ctx, Query{Reference: ref})
	if err != nil {
		return s.observe("list", fmt.Errorf("procurement: remove by reference: %w", err))
	}
	if len(recs) == 0 {
		return fmt.Errorf("procurement: reference %q: %w", ref, ErrNotFound)
	}
	for _, rec := range recs {
		if err := s.Remove(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one record with its supplier name filled in.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, s.observe("get", fmt.Errorf("procurement: get: %w", err))
	}
	recs, err := s.Enrich(ctx, []Record{rec})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// NextReference returns the next free reference for the current month.
func (s *Service) NextReference(ctx context.Context) (string, error) {
	now := s.now()
	recs, err := s.store.List(ctx, Query{ReferenceLike: ReferencePrefix(now)})
	if err != nil {
		return "", s.observe("list", fmt.Errorf("procurement: next reference: %w", err))
	}
	refs := make([]string, len(recs))
	for i, rec := range recs {
		refs[i] = rec.Reference
	}
	return GenerateReference(refs, now), nil
}

// ReferenceExists reports whether ref is already used.
func (s *Service) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	recs, err := s.store.List(ctx, Query{Reference: ref})
	if err != nil {
		return false, s.observe("list", fmt.Errorf("procurement: reference exists: %w", err))
	}
	return len(recs) > 0, nil
}

// ListRequest selects one page of the filtered listing.
type ListRequest struct {
	Filters Filters
	Page    int
	PerPage int
}

// ListResult is one page of records plus its pagination state.
type ListResult struct {
	Records    []Record          `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
	Info       string            `json:"info"`
}

// Matching loads every record, fills supplier names and applies f.
func (s *Service) Matching(ctx context.Context, f Filters) ([]Record, error) {
	var (
		recs      []Record
		suppliers map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = s.store.List(gctx, Query{})
		return s.observe("list", err)
	})
	g.Go(func() error {
		var err error
		suppliers, err = s.supplierNames(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("procurement: list: %w", err)
	}
	fillSupplierNames(recs, suppliers)
	return Filter(recs, f), nil
}

// List returns one page of the records matching req.Filters.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	filtered, err := s.Matching(ctx, req.Filters)
	if err != nil {
		return ListResult{}, err
	}
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	p := shared.NewPagination(req.Page, perPage, len(filtered))
	return ListResult{
		Records:    shared.Paginate(filtered, p),
		Pagination: p,
		Info:       p.Info(),
	}, nil
}

// Search pushes reference, supplier id and status down to the store and
// applies the date bounds locally.
func (s *Service) Search(ctx context.Context, f Filters) ([]Record, error) {
	recs, err := s.store.List(ctx, Query{
		ReferenceLike: f.Search,
		SupplierID:    f.SupplierID,
		Status:        f.Status,
	})
	if err != nil {
		return nil, s.observe("list", fmt.Errorf("procurement: search: %w", err))
	}
	recs, err = s.Enrich(ctx, recs)
	if err != nil {
		return nil, err
	}
	return Filter(recs, Filters{DateFrom: f.DateFrom, DateTo: f.DateTo}), nil
}

// Stats aggregates the records dated within [from, to]. Empty bounds are open.
func (s *Service) Stats(ctx context.Context, from, to string) (Stats, error) {
	recs, err := s.Search(ctx, Filters{DateFrom: from, DateTo: to})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(recs), nil
}

// Enrich fills SupplierName on records that lack it.
func (s *Service) Enrich(ctx context.Context, recs []Record) ([]Record, error) {
	missing := false
	for _, rec := range recs {
		if rec.SupplierName == "" {
			missing = true
			break
		}
	}
	if !missing {
		return recs, nil
	}
	names, err := s.supplierNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("procurement: enrich: %w", err)
	}
	fillSupplierNames(recs, names)
	return recs, nil
}

func (s *Service) supplierNames(ctx context.Context) (map[string]string, error) {
	if s.catalog == nil {
		return nil, nil
	}
	suppliers, err := s.catalog.Suppliers(ctx)
	if err != nil {
		return nil, s.observe("suppliers", err)
	}
	names := make(map[string]string, len(suppliers))
	for _, sup := range suppliers {
		names[sup.ID] = sup.Name
	}
	return names, nil
}

func (s *Service) supplierName(ctx context.Context, id string) (string, error) {
	if s.catalog == nil {
		return "", nil
	}
	sup, err := s.catalog.Supplier(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.FieldError("fournisseurId", "unknown supplier")
		}
		return "", s.observe("supplier", err)
	}
	return sup.Name, nil
}

func fillSupplierNames(recs []Record, names map[string]string) {
	for i := range recs {
		if recs[i].SupplierName == "" {
			recs[i].SupplierName = names[recs[i].SupplierID]
		}
	}
}

// recomputeLines refreshes every amount and folds repeated articles into the
// first line carrying them, the way LineBuilder.Commit does.
func recomputeLines(lines []LineItem) []LineItem {
	if lines == nil {
		return nil
	}
	out := make([]LineItem, 0, len(lines))
	seen := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := seen[l.ArticleID]; ok && l.ArticleID != "" {
			out[i].Quantity += l.Quantity
			out[i].Recompute()
			continue
		}
		l.Recompute()
		seen[l.ArticleID] = len(out)
		out = append(out, l)
	}
	return out
}
