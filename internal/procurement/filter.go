package procurement

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filters narrows a record listing. Zero fields match everything.
type Filters struct {
	Search     string
	SupplierID string
	Status     Status
	DateFrom   string
	DateTo     string
}

// IsZero reports whether no predicate is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Merge returns f with every non-empty field of other applied on top.
func (f Filters) Merge(other Filters) Filters {
	if other.Search != "" {
		f.Search = other.Search
	}
	if other.SupplierID != "" {
		f.SupplierID = other.SupplierID
	}
	if other.Status != "" {
		f.Status = other.Status
	}
	if other.DateFrom != "" {
		f.DateFrom = other.DateFrom
	}
	if other.DateTo != "" {
		f.DateTo = other.DateTo
	}
	return f
}

// Filter applies f to records and returns a fresh slice in input order.
// The input is never modified.
func Filter(records []Record, f Filters) []Record {
	out := make([]Record, 0, len(records))
	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(f.Search))
	for _, rec := range records {
		if term != "" &&
			!strings.Contains(fold.String(rec.Reference), term) &&
			!strings.Contains(fold.String(rec.SupplierName), term) {
			continue
		}
		if f.SupplierID != "" && rec.SupplierID != f.SupplierID && rec.SupplierName != f.SupplierID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.DateFrom != "" && rec.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && rec.Date > f.DateTo {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}
