// Package mathutil provides small numeric helpers shared by the domain packages.
package mathutil

// ClampLimit validates a pagination limit, applying default and max constraints.
// If limit <= 0, returns defaultVal. The result never exceeds maxVal.
func ClampLimit(limit, defaultVal, maxVal int) int {
	if limit <= 0 {
		limit = defaultVal
	}
	if limit > maxVal {
		return maxVal
	}
	return limit
}

// ClampOffset turns negative offsets into 0.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
