package procurement

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Matches reports whether rec satisfies the equality and substring parts of q.
func (q Query) Matches(rec Record) bool {
	if q.SupplierID != "" && rec.SupplierID != q.SupplierID {
		return false
	}
	if q.Status != "" && rec.Status != q.Status {
		return false
	}
	if q.Reference != "" && rec.Reference != q.Reference {
		return false
	}
	if q.ReferenceLike != "" {
		fold := cases.Fold()
		if !strings.Contains(fold.String(rec.Reference), fold.String(q.ReferenceLike)) {
			return false
		}
	}
	return true
}

// apply evaluates q against records the way the collaborator would: match,
// sort, then page. Used by stores without a query engine of their own.
func (q Query) apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if q.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	if q.Sort != "" {
		slices.SortStableFunc(out, func(a, b Record) int {
			c := compareField(a, b, q.Sort)
			if strings.EqualFold(q.Order, "desc") {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * q.Limit
		if start >= len(out) {
			return out[:0]
		}
		out = out[start:min(start+q.Limit, len(out))]
	}
	return out
}

func compareField(a, b Record, field string) int {
	switch field {
	case SortDate:
		return cmp.Compare(a.Date, b.Date)
	case SortTotal:
		return cmp.Compare(a.TotalAmount, b.TotalAmount)
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return cmp.Compare(a.Reference, b.Reference)
	}
}
