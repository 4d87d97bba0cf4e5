package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

// Snapshot is an immutable in-memory catalog.
type Snapshot struct {
	suppliers []Supplier
	articles  []Article
	supIdx    map[string]int
	artIdx    map[string]int
}

// Fixture mirrors the on-disk layout of reference data (JSON-Server db.json keys).
type Fixture struct {
	Suppliers []Supplier `yaml:"fournisseurs"`
	Articles  []Article  `yaml:"articles"`
}

// NewSnapshot copies the given reference data into an immutable catalog.
func NewSnapshot(suppliers []Supplier, articles []Article) *Snapshot {
	s := &Snapshot{
		suppliers: make([]Supplier, len(suppliers)),
		articles:  make([]Article, len(articles)),
		supIdx:    make(map[string]int, len(suppliers)),
		artIdx:    make(map[string]int, len(articles)),
	}
	copy(s.suppliers, suppliers)
	for i, sup := range s.suppliers {
		s.supIdx[sup.ID] = i
	}
	for i, art := range articles {
		s.articles[i] = cloneArticle(art)
		s.artIdx[art.ID] = i
	}
	return s
}

// LoadFixture reads a YAML fixture file into a Snapshot.
func LoadFixture(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes YAML fixture bytes into a Snapshot.
func ParseFixture(raw []byte) (*Snapshot, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("catalog: decode fixture: %w", err)
	}
	return NewSnapshot(fx.Suppliers, fx.Articles), nil
}

// DefaultSnapshot returns the demo textile catalogue.
func DefaultSnapshot() *Snapshot {
	return NewSnapshot(
		[]Supplier{
			{ID: "1", Name: "Textiles Dakar SARL", Contact: "77 123 45 67"},
			{ID: "2", Name: "Mercerie Centrale", Contact: "76 234 56 78"},
			{ID: "3", Name: "Tissus Premium", Contact: "78 345 67 89"},
			{ID: "4", Name: "Distribution Moderne", Contact: "70 456 78 90"},
		},
		[]Article{
			{ID: "1", Name: "Coton blanc 100%", ReferencePrice: Price(5000)},
			{ID: "2", Name: "Soie naturelle", ReferencePrice: Price(15000)},
			{ID: "3", Name: "Lin premium", ReferencePrice: Price(8000)},
			{ID: "4", Name: "Polyester résistant", ReferencePrice: Price(3000)},
			{ID: "5", Name: "Laine mérinos", ReferencePrice: Price(12000)},
			{ID: "6", Name: "Velours de luxe", ReferencePrice: Price(18000)},
			{ID: "7", Name: "Denim brut", ReferencePrice: Price(6000)},
			{ID: "8", Name: "Satin brillant", ReferencePrice: Price(10000)},
		},
	)
}

// Suppliers returns a copy of all suppliers.
func (s *Snapshot) Suppliers(ctx context.Context) ([]Supplier, error) {
	out := make([]Supplier, len(s.suppliers))
	copy(out, s.suppliers)
	return out, nil
}

// Supplier looks a supplier up by identifier.
func (s *Snapshot) Supplier(ctx context.Context, id string) (Supplier, error) {
	i, ok := s.supIdx[id]
	if !ok {
		return Supplier{}, fmt.Errorf("catalog: supplier %q: %w", id, shared.ErrNotFound)
	}
	return s.suppliers[i], nil
}

// Articles returns a copy of all articles.
func (s *Snapshot) Articles(ctx context.Context) ([]Article, error) {
	out := make([]Article, len(s.articles))
	for i, a := range s.articles {
		out[i] = cloneArticle(a)
	}
	return out, nil
}

// Article looks an article up by identifier.
func (s *Snapshot) Article(ctx context.Context, id string) (Article, error) {
	i, ok := s.artIdx[id]
	if !ok {
		return Article{}, fmt.Errorf("catalog: article %q: %w", id, shared.ErrNotFound)
	}
	return cloneArticle(s.articles[i]), nil
}

// SearchArticles filters articles by case-insensitive name substring.
func (s *Snapshot) SearchArticles(ctx context.Context, term string) ([]Article, error) {
	out := make([]Article, 0)
	for _, a := range s.articles {
		if matchName(a.Name, term) {
			out = append(out, cloneArticle(a))
		}
	}
	return out, nil
}
