package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/approvisionnement/internal/platform/jsonserver"
)

// Collaborator resources holding reference data.
const (
	ResourceArticles  = "articles"
	ResourceSuppliers = "fournisseurs"
)

// RemoteCatalog reads reference data from the JSON-Server collaborator.
type RemoteCatalog struct {
	client *jsonserver.Client
	group  singleflight.Group
}

// NewRemoteCatalog wires a catalog over client.
func NewRemoteCatalog(client *jsonserver.Client) *RemoteCatalog {
	return &RemoteCatalog{client: client}
}

// Suppliers fetches every supplier. Concurrent callers share one request,
// which runs detached from any single caller's cancellation.
func (c *RemoteCatalog) Suppliers(ctx context.Context) ([]Supplier, error) {
	detached := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(ResourceSuppliers, func() (any, error) {
		var out []Supplier
		if err := c.client.List(detached, ResourceSuppliers, jsonserver.NewParams(), &out); err != nil {
			return nil, fmt.Errorf("catalog: list suppliers: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	src := v.([]Supplier)
	out := make([]Supplier, len(src))
	copy(out, src)
	return out, nil
}

// Supplier fetches one supplier.
func (c *RemoteCatalog) Supplier(ctx context.Context, id string) (Supplier, error) {
	var out Supplier
	if err := c.client.Get(ctx, ResourceSuppliers, id, &out); err != nil {
		return Supplier{}, fmt.Errorf("catalog: supplier %q: %w", id, err)
	}
	return out, nil
}

// Articles fetches every article. Concurrent callers share one request.
func (c *RemoteCatalog) Articles(ctx context.Context) ([]Article, error) {
	detached := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(ResourceArticles, func() (any, error) {
		var out []Article
		if err := c.client.List(detached, ResourceArticles, jsonserver.NewParams(), &out); err != nil {
			return nil, fmt.Errorf("catalog: list articles: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	src := v.([]Article)
	out := make([]Article, len(src))
	for i, a := range src {
		out[i] = cloneArticle(a)
	}
	return out, nil
}

// Article fetches one article.
func (c *RemoteCatalog) Article(ctx context.Context, id string) (Article, error) {
	var out Article
	if err := c.client.Get(ctx, ResourceArticles, id, &out); err != nil {
		return Article{}, fmt.Errorf("catalog: article %q: %w", id, err)
	}
	return out, nil
}

// SearchArticles pushes the name search down as nom_like.
func (c *RemoteCatalog) SearchArticles(ctx context.Context, term string) ([]Article, error) {
	out := make([]Article, 0)
	if err := c.client.List(ctx, ResourceArticles, jsonserver.NewParams().Like("nom", term), &out); err != nil {
		return nil, fmt.Errorf("catalog: search articles: %w", err)
	}
	return out, nil
}

// Load fetches suppliers and articles concurrently into an immutable Snapshot.
func Load(ctx context.Context, src Catalog) (*Snapshot, error) {
	var (
		suppliers []Supplier
		articles  []Article
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		suppliers, err = src.Suppliers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		articles, err = src.Articles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(suppliers, articles), nil
}
