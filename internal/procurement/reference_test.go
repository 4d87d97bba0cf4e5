package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateReference(t *testing.T) {
	jan := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		existing []string
		want     string
	}{
		{"empty", nil, "APP-202401-001"},
		{"sequence", []string{"APP-202401-001", "APP-202401-002"}, "APP-202401-003"},
		{"max not count", []string{"APP-202401-007", "APP-202401-002"}, "APP-202401-008"},
		{"other months ignored", []string{"APP-202312-041", "APP-202402-005"}, "APP-202401-001"},
		{"leading digits only", []string{"APP-202401-012-bis", "APP-202401-abc"}, "APP-202401-013"},
		{"beyond three digits", []string{"APP-202401-999"}, "APP-202401-1000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, GenerateReference(tc.existing, jan))
		})
	}
}
