package procurement

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/approvisionnement/internal/platform/jsonserver"
)

// ResourceRecords is the collaborator collection holding procurement records.
const ResourceRecords = "approvisionnements"

// RemoteStore persists records through a JSON-Server collaborator.
type RemoteStore struct {
	client *jsonserver.Client
}

// NewRemoteStore wraps a JSON-Server client.
func NewRemoteStore(client *jsonserver.Client) *RemoteStore {
	return &RemoteStore{client: client}
}

func queryParams(q Query) jsonserver.Params {
	p := jsonserver.NewParams().
		Eq("fournisseurId", q.SupplierID).
		Eq("statut", string(q.Status)).
		Eq("reference", q.Reference).
		Like("reference", q.ReferenceLike)
	if q.Sort != "" {
		p = p.Sort(q.Sort, q.Order)
	}
	if q.Limit > 0 {
		p = p.Page(q.Page, q.Limit)
	}
	return p
}

// List fetches records, pushing q down as query parameters.
func (s *RemoteStore) List(ctx context.Context, q Query) ([]Record, error) {
	var out []Record
	if err := s.client.List(ctx, ResourceRecords, queryParams(q), &out); err != nil {
		return nil, fmt.Errorf("procurement: list records: %w", err)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// Get fetches one record.
func (s *RemoteStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := s.client.Get(ctx, ResourceRecords, id, &rec); err != nil {
		return Record{}, fmt.Errorf("procurement: get record %q: %w", id, err)
	}
	return rec, nil
}

// Create posts rec. The collaborator has no unique constraints so the
// reference is checked first; a concurrent writer can still slip through.
func (s *RemoteStore) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.Reference != "" {
		existing, err := s.List(ctx, Query{Reference: rec.Reference})
		if err != nil {
			return Record{}, err
		}
		if len(existing) > 0 {
			return Record{}, fmt.Errorf("procurement: reference %q: %w", rec.Reference, ErrConflict)
		}
	}
	var created Record
	if err := s.client.Create(ctx, ResourceRecords, rec, &created); err != nil {
		return Record{}, fmt.Errorf("procurement: create record: %w", err)
	}
	return created, nil
}

// Update sends patch as a partial document.
func (s *RemoteStore) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	var updated Record
	if err := s.client.Patch(ctx, ResourceRecords, id, patch, &updated); err != nil {
		return Record{}, fmt.Errorf("procurement: update record %q: %w", id, err)
	}
	return updated, nil
}

// Delete removes a record.
func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, ResourceRecords, id); err != nil {
		return fmt.Errorf("procurement: delete record %q: %w", id, err)
	}
	return nil
}
