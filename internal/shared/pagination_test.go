package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationTotalPages(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for perPage := 1; perPage <= 7; perPage++ {
			p := NewPagination(1, perPage, total)
			want := (total + perPage - 1) / perPage
			require.Equal(t, want, p.TotalPages, "total=%d perPage=%d", total, perPage)

			covered := 0
			for page := 1; page <= p.TotalPages; page++ {
				start, end := NewPagination(page, perPage, total).Window()
				covered += end - start
			}
			require.Equal(t, total, covered, "total=%d perPage=%d", total, perPage)
		}
	}
}

func TestNewPaginationClamps(t *testing.T) {
	for _, page := range []int{-3, 0, 1, 2, 3, 9, 100} {
		for _, total := range []int{0, 1, 12, 30} {
			p := NewPagination(page, 5, total)
			maxPage := p.TotalPages
			if maxPage < 1 {
				maxPage = 1
			}
			require.GreaterOrEqual(t, p.Page, 1)
			require.LessOrEqual(t, p.Page, maxPage)
		}
	}
	require.Equal(t, 3, NewPagination(9, 5, 12).Page)
	require.Equal(t, 1, NewPagination(4, 5, 0).Page)
}

func TestPaginationEmptyListed(t *testing.T) {
	p := NewPagination(4, 5, 0)

	start, end := p.Window()
	require.Equal(t, 1, p.Page)
	require.Zero(t, start)
	require.Zero(t, end)
	require.False(t, p.CanGoPrevious())
	require.False(t, p.CanGoNext())
}

func TestPaginationLastPageOfTwelve(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}
	p := NewPagination(3, 5, len(items))

	require.Equal(t, []int{10, 11}, Paginate(items, p))
	require.False(t, p.CanGoNext())
	require.True(t, p.CanGoPrevious())
	require.Equal(t, "11-12 sur 12", p.Info())
}

func TestPaginationPageNumbers(t *testing.T) {
	cases := []struct {
		name  string
		page  int
		total int
		want  []int
	}{
		{name: "empty", page: 1, total: 0, want: []int{}},
		{name: "fewer pages than strip", page: 2, total: 15, want: []int{1, 2, 3}},
		{name: "start boundary", page: 1, total: 50, want: []int{1, 2, 3, 4, 5}},
		{name: "centred", page: 6, total: 50, want: []int{4, 5, 6, 7, 8}},
		{name: "end boundary", page: 10, total: 50, want: []int{6, 7, 8, 9, 10}},
		{name: "near end", page: 9, total: 50, want: []int{6, 7, 8, 9, 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, 5, tc.total)
			require.Equal(t, tc.want, p.PageNumbers(5))
		})
	}
}

func TestPaginationNavigation(t *testing.T) {
	p := NewPagination(1, 5, 12)

	p = p.Previous()
	require.Equal(t, 1, p.Page)
	p = p.Next().Next()
	require.Equal(t, 3, p.Page)
	p = p.Next()
	require.Equal(t, 3, p.Page)
	p = p.GoTo(7)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 1, p.First().Page)
	require.Equal(t, 3, p.First().Last().Page)

	resized := p.WithPageSize(10)
	require.Equal(t, 1, resized.Page)
	require.Equal(t, 2, resized.TotalPages)
}

func TestPaginationDefaultsPerPage(t *testing.T) {
	p := NewPagination(1, 0, 45)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
}
