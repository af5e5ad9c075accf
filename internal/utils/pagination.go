// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes a 1-based page number, snapping anything below 1 up
// to 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize bounds a page size to [1, max], substituting def for
// non-positive inputs.
func ClampPageSize(size, def, max int) int {
	if size < 1 {
		return def
	}
	if size > max {
		return max
	}
	return size
}
