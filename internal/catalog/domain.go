// Package catalog exposes read-only reference data: articles and suppliers.
package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

// Article is a catalog item that can appear on procurement lines.
type Article struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"nom" yaml:"nom"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	ReferencePrice *float64 `json:"prixReference,omitempty" yaml:"prixReference,omitempty"`
	Unit           string   `json:"unite,omitempty" yaml:"unite,omitempty"`
	Category       string   `json:"categorie,omitempty" yaml:"categorie,omitempty"`
	Stock          *float64 `json:"stock,omitempty" yaml:"stock,omitempty"`
}

// Supplier provides goods recorded on procurement records.
type Supplier struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"nom" yaml:"nom"`
	Contact string `json:"contact,omitempty" yaml:"contact,omitempty"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty"`
	Address string `json:"adresse,omitempty" yaml:"adresse,omitempty"`
}

// UnmarshalJSON accepts numeric ids as served by JSON-Server.
func (a *Article) UnmarshalJSON(b []byte) error {
	type plain Article
	aux := struct {
		*plain
		ID shared.FlexID `json:"id"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.ID = string(aux.ID)
	return nil
}

// UnmarshalJSON accepts numeric ids as served by JSON-Server.
func (s *Supplier) UnmarshalJSON(b []byte) error {
	type plain Supplier
	aux := struct {
		*plain
		ID shared.FlexID `json:"id"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.ID = string(aux.ID)
	return nil
}

// Catalog is the query interface over reference data. Implementations never
// hand out shared mutable state.
type Catalog interface {
	Suppliers(ctx context.Context) ([]Supplier, error)
	Supplier(ctx context.Context, id string) (Supplier, error)
	Articles(ctx context.Context) ([]Article, error)
	Article(ctx context.Context, id string) (Article, error)
	SearchArticles(ctx context.Context, term string) ([]Article, error)
}

// Price returns a pointer to v, for literal reference prices.
func Price(v float64) *float64 {
	return &v
}

func matchName(name, term string) bool {
	if term == "" {
		return true
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(name), fold.String(term))
}

func cloneArticle(a Article) Article {
	if a.ReferencePrice != nil {
		a.ReferencePrice = Price(*a.ReferencePrice)
	}
	if a.Stock != nil {
		a.Stock = Price(*a.Stock)
	}
	return a
}
