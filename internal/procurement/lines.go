package procurement

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/approvisionnement/internal/catalog"
	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

// LineBuilder accumulates the lines of one record being edited plus a
// scratch "current line". It is not safe for concurrent use.
type LineBuilder struct {
	catalog catalog.Catalog
	lines   []LineItem
	current LineItem
}

// NewLineBuilder binds a builder to a catalog used for reference prices.
// A nil catalog disables price defaulting.
func NewLineBuilder(cat catalog.Catalog, lines ...LineItem) *LineBuilder {
	b := &LineBuilder{catalog: cat}
	for _, l := range lines {
		l.Recompute()
		b.lines = append(b.lines, l)
	}
	return b
}

// SetCurrentLine replaces the scratch line. A nil unitPrice defaults to the
// article's reference price when the catalog carries one.
func (b *LineBuilder) SetCurrentLine(ctx context.Context, articleID string, quantity float64, unitPrice *float64) error {
	b.current = LineItem{ArticleID: articleID, Quantity: quantity}
	if unitPrice != nil {
		b.current.UnitPrice = *unitPrice
	} else if price, err := b.referencePrice(ctx, articleID); err != nil {
		return err
	} else {
		b.current.UnitPrice = price
	}
	b.current.Recompute()
	return nil
}

// SelectArticle switches the current line to another article and reloads its
// reference price.
func (b *LineBuilder) SelectArticle(ctx context.Context, articleID string) error {
	price, err := b.referencePrice(ctx, articleID)
	if err != nil {
		return err
	}
	b.current.ArticleID = articleID
	b.current.UnitPrice = price
	b.current.Recompute()
	return nil
}

// SetQuantity updates the current line quantity.
func (b *LineBuilder) SetQuantity(q float64) {
	b.current.Quantity = q
	b.current.Recompute()
}

// SetUnitPrice updates the current line unit price.
func (b *LineBuilder) SetUnitPrice(p float64) {
	b.current.UnitPrice = p
	b.current.Recompute()
}

// Current returns the scratch line.
func (b *LineBuilder) Current() LineItem {
	return b.current
}

// Commit validates the scratch line and adds it, merging into an existing
// line for the same article. The scratch line is reset on success.
func (b *LineBuilder) Commit() error {
	line := b.current
	fields := map[string]string{}
	if line.ArticleID == "" {
		fields["articleId"] = "required"
	}
	if line.Quantity <= 0 {
		fields["quantite"] = "must be greater than 0"
	}
	if line.UnitPrice < 0 {
		fields["prixUnitaire"] = "must be at least 0"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	line.Recompute()
	merged := false
	for i := range b.lines {
		if b.lines[i].ArticleID == line.ArticleID {
			b.lines[i].Quantity += line.Quantity
			b.lines[i].Recompute()
			merged = true
			break
		}
	}
	if !merged {
		b.lines = append(b.lines, line)
	}
	b.current = LineItem{}
	return nil
}

// Remove deletes the line at index.
func (b *LineBuilder) Remove(index int) error {
	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("procurement: line %d of %d: %w", index, len(b.lines), shared.ErrIndex)
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

// Lines returns a copy of the committed lines.
func (b *LineBuilder) Lines() []LineItem {
	return append([]LineItem(nil), b.lines...)
}

// Total sums the committed line amounts.
func (b *LineBuilder) Total() float64 {
	return sumLines(b.lines)
}

// Draft returns header with the committed lines attached.
func (b *LineBuilder) Draft(header Draft) Draft {
	header.Lines = b.Lines()
	return header
}

func (b *LineBuilder) referencePrice(ctx context.Context, articleID string) (float64, error) {
	if b.catalog == nil || articleID == "" {
		return 0, nil
	}
	art, err := b.catalog.Article(ctx, articleID)
	if err != nil {
		return 0, fmt.Errorf("procurement: article %q: %w", articleID, err)
	}
	if art.ReferencePrice == nil {
		return 0, nil
	}
	return *art.ReferencePrice, nil
}

func sumLines(lines []LineItem) float64 {
	var total float64
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
