package procurement

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const referencePrefix = "APP-"

// ReferencePrefix returns the APP-YYYYMM- prefix for the month of now.
func ReferencePrefix(now time.Time) string {
	return referencePrefix + now.Format("200601") + "-"
}

// GenerateReference returns the next APP-YYYYMM-NNN code for the month of
// now given the references already in use. Codes from other months are ignored.
func GenerateReference(existing []string, now time.Time) string {
	prefix := ReferencePrefix(now)
	highest := 0
	for _, ref := range existing {
		suffix, ok := strings.CutPrefix(ref, prefix)
		if !ok {
			continue
		}
		if n := leadingInt(suffix); n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
