package procurement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func filterFixture() []Record {
	return []Record{
		{Reference: "APP-202401-001", Date: "2024-01-03", SupplierID: "1", SupplierName: "Textiles Dakar SARL", Status: StatusPending},
		{Reference: "APP-202401-002", Date: "2024-01-10", SupplierID: "2", SupplierName: "Mercerie Centrale", Status: StatusReceived},
		{Reference: "APP-202402-001", Date: "2024-02-01", SupplierID: "1", SupplierName: "Textiles Dakar SARL", Status: StatusCancelled},
		{Reference: "APP-202402-002", Date: "2024-02-20", SupplierID: "4", SupplierName: "Distribution Moderne", Status: StatusPending},
	}
}

func references(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Reference
	}
	return out
}

func TestFilterPredicates(t *testing.T) {
	recs := filterFixture()
	cases := []struct {
		name string
		f    Filters
		want []string
	}{
		{"empty", Filters{}, references(recs)},
		{"search reference", Filters{Search: "app-202402"}, []string{"APP-202402-001", "APP-202402-002"}},
		{"search supplier name", Filters{Search: "MERCERIE"}, []string{"APP-202401-002"}},
		{"supplier id", Filters{SupplierID: "1"}, []string{"APP-202401-001", "APP-202402-001"}},
		{"supplier name", Filters{SupplierID: "Distribution Moderne"}, []string{"APP-202402-002"}},
		{"status", Filters{Status: StatusPending}, []string{"APP-202401-001", "APP-202402-002"}},
		{"date range inclusive", Filters{DateFrom: "2024-01-10", DateTo: "2024-02-01"}, []string{"APP-202401-002", "APP-202402-001"}},
		{"and composition", Filters{SupplierID: "1", DateFrom: "2024-01-15"}, []string{"APP-202402-001"}},
		{"no match", Filters{Search: "zzz"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, references(Filter(recs, tc.f)))
		})
	}
}

func TestFilterSearchFoldsCase(t *testing.T) {
	recs := []Record{{Reference: "APP-202401-001", SupplierName: "Élégance Tissus"}}
	require.Len(t, Filter(recs, Filters{Search: "élégance"}), 1)
	require.Len(t, Filter(recs, Filters{Search: "ÉLÉGANCE"}), 1)
}

func TestFilterIsIdempotentAndDoesNotAlias(t *testing.T) {
	recs := filterFixture()
	recs[0].Lines = []LineItem{{ArticleID: "1", Quantity: 1, UnitPrice: 10, Amount: 10}}
	f := Filters{SupplierID: "1"}

	first := Filter(recs, f)
	second := Filter(recs, f)
	require.Equal(t, first, second)
	require.Equal(t, first, Filter(first, f))

	all := Filter(recs, Filters{})
	all[0].Reference = "changed"
	all[0].Lines[0].Quantity = 99
	require.Equal(t, "APP-202401-001", recs[0].Reference)
	require.Equal(t, 1.0, recs[0].Lines[0].Quantity)
}

func TestFilterComposition(t *testing.T) {
	recs := filterFixture()
	pairs := [][2]Filters{
		{{SupplierID: "1"}, {DateFrom: "2024-02-01"}},
		{{Search: "APP"}, {Status: StatusPending}},
		{{DateTo: "2024-01-31"}, {Search: "mercerie"}},
	}
	for _, p := range pairs {
		chained := Filter(Filter(recs, p[0]), p[1])
		merged := Filter(recs, p[0].Merge(p[1]))
		require.Equal(t, chained, merged)
	}
}

func TestFiltersIsZero(t *testing.T) {
	require.True(t, Filters{}.IsZero())
	require.False(t, Filters{DateTo: "2024-01-01"}.IsZero())
}
