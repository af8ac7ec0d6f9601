// Package utils provides tiny query-string parsing helpers shared by the
// HTTP handlers: page numbers, page sizes, and numeric filters such as
// TMDB genre ids all arrive as optional string parameters.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// plain integer. No trimming is applied; " 42" is not a valid page number.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Atoi64Default is AtoiDefault for 64-bit values (TMDB ids and genre ids).
func Atoi64Default(s string, def int64) int64 {
	if s == "" {
		return def
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return def
}
