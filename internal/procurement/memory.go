package procurement

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// MemoryStore keeps records in process. Reads return copies.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

// NewMemoryStore returns a store seeded with records. Seeds without an id
// receive a generated one.
func NewMemoryStore(seed ...Record) (*MemoryStore, error) {
	s := &MemoryStore{records: make(map[string]Record)}
	for _, rec := range seed {
		if _, err := s.Create(context.Background(), rec); err != nil {
			return nil, fmt.Errorf("procurement: seed %q: %w", rec.Reference, err)
		}
	}
	return s, nil
}

type seedFile struct {
	Records []Record `yaml:"approvisionnements"`
}

// LoadSeed reads seed records from the approvisionnements key of a YAML fixture.
func LoadSeed(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("procurement: read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("procurement: parse seed: %w", err)
	}
	return f.Records, nil
}

// List returns the records matching q in insertion order unless q sorts.
func (s *MemoryStore) List(ctx context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.records[id])
	}
	return q.apply(all), nil
}

// Get returns a record by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
	}
	return rec.Clone(), nil
}

// Create stores rec, assigning an id when missing. References are unique.
func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return Record{}, fmt.Errorf("procurement: id %q: %w", rec.ID, ErrConflict)
	}
	if s.referenceTaken(rec.Reference, "") {
		return Record{}, fmt.Errorf("procurement: reference %q: %w", rec.Reference, ErrConflict)
	}
	rec = rec.Clone()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec.Clone(), nil
}

// Update merges patch into the stored record.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
	}
	next := patch.Apply(rec)
	if next.Reference != rec.Reference && s.referenceTaken(next.Reference, id) {
		return Record{}, fmt.Errorf("procurement: reference %q: %w", next.Reference, ErrConflict)
	}
	s.records[id] = next
	return next.Clone(), nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("procurement: record %q: %w", id, ErrNotFound)
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) referenceTaken(ref, exceptID string) bool {
	if ref == "" {
		return false
	}
	for id, rec := range s.records {
		if id != exceptID && rec.Reference == ref {
			return true
		}
	}
	return false
}
