package stats

import (
	"strings"
	"unicode/utf8"
)

// UnknownKey stands in for a missing cpu_model or system type.
const UnknownKey = "Unknown"

// MaxSystemTypeLength is the width of benchmark_stats.system_type in characters.
const MaxSystemTypeLength = 255

// SystemType derives the system type from a run's DMI document as
// "{manufacturer} {product}". Empty and non-string values count as absent.
// Labels wider than the cache column are cut to MaxSystemTypeLength runes.
func SystemType(dmi map[string]any) string {
	manufacturer := dmiString(dmi, "manufacturer")
	product := dmiString(dmi, "product")

	switch {
	case manufacturer != "" && product != "":
		return truncateRunes(manufacturer+" "+product, MaxSystemTypeLength)
	case manufacturer != "":
		return truncateRunes(manufacturer, MaxSystemTypeLength)
	case product != "":
		return truncateRunes(product, MaxSystemTypeLength)
	default:
		return UnknownKey
	}
}

// SystemTypeLength is the length in runes of the untruncated label.
func SystemTypeLength(dmi map[string]any) int {
	manufacturer := dmiString(dmi, "manufacturer")
	product := dmiString(dmi, "product")
	n := utf8.RuneCountInString(manufacturer) + utf8.RuneCountInString(product)
	if manufacturer != "" && product != "" {
		n++
	}
	return n
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func dmiString(dmi map[string]any, key string) string {
	s, ok := dmi[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// CPUKey normalizes a nullable cpu_model to its stats key.
func CPUKey(cpuModel *string) string {
	if cpuModel == nil || *cpuModel == "" {
		return UnknownKey
	}
	return *cpuModel
}
