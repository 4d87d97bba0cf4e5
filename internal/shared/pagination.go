package shared

import (
	"fmt"
	"math"
)

const (
	// DefaultPerPage applies when a caller supplies a non-positive page size.
	DefaultPerPage = 20
	// DefaultVisiblePages is the width of the page number strip.
	DefaultVisiblePages = 5
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata and clamps the current page.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	p := Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
	p.clamp()
	return p
}

func (p *Pagination) clamp() {
	maxPage := p.TotalPages
	if maxPage < 1 {
		maxPage = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Page < 1 {
		p.Page = 1
	}
}

// Window returns the half-open [start, end) item range of the current page.
func (p Pagination) Window() (int, int) {
	start := (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end := start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// Offset mirrors Window's start for SQL style LIMIT/OFFSET queries.
func (p Pagination) Offset() int {
	start, _ := p.Window()
	return start
}

// CanGoPrevious reports whether a previous page exists.
func (p Pagination) CanGoPrevious() bool {
	return p.Page > 1
}

// CanGoNext reports whether a next page exists.
func (p Pagination) CanGoNext() bool {
	return p.Page < p.TotalPages
}

// GoTo moves to page when it lies within 1..TotalPages; other values are ignored.
func (p Pagination) GoTo(page int) Pagination {
	if page >= 1 && page <= p.TotalPages {
		p.Page = page
	}
	return p
}

// Next advances one page when possible.
func (p Pagination) Next() Pagination {
	if p.CanGoNext() {
		p.Page++
	}
	return p
}

// Previous steps back one page when possible.
func (p Pagination) Previous() Pagination {
	if p.CanGoPrevious() {
		p.Page--
	}
	return p
}

// First jumps to page 1.
func (p Pagination) First() Pagination {
	return p.GoTo(1)
}

// Last jumps to the final page.
func (p Pagination) Last() Pagination {
	return p.GoTo(p.TotalPages)
}

// WithPageSize changes the page size and resets to the first page.
func (p Pagination) WithPageSize(perPage int) Pagination {
	return NewPagination(1, perPage, p.Total)
}

// WithTotal recomputes the page count for a new item count, keeping the page clamped.
func (p Pagination) WithTotal(total int) Pagination {
	return NewPagination(p.Page, p.PerPage, total)
}

// PageNumbers returns a contiguous strip of at most maxVisible page numbers
// centred on the current page and shifted at either boundary.
func (p Pagination) PageNumbers(maxVisible int) []int {
	if maxVisible <= 0 {
		maxVisible = DefaultVisiblePages
	}
	if p.TotalPages == 0 {
		return []int{}
	}
	start := p.Page - maxVisible/2
	if start < 1 {
		start = 1
	}
	end := start + maxVisible - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = end - maxVisible + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Info renders the "start-end sur total" label shown under listings.
func (p Pagination) Info() string {
	start, end := p.Window()
	if p.Total == 0 {
		return "0-0 sur 0"
	}
	return fmt.Sprintf("%d-%d sur %d", start+1, end, p.Total)
}

// Paginate returns the slice of items visible on the current page.
func Paginate[T any](items []T, p Pagination) []T {
	start, end := p.Window()
	if start >= len(items) {
		return []T{}
	}
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
