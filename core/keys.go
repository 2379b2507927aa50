package core

import (
	"path"
	"strings"
)

// ValidateArchiveKey accepts flat names such as "poster.drkr". Keys that look
// like paths are rejected so no store can be steered outside its namespace.
func ValidateArchiveKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return InvalidOperation("invalid archive key %q", key)
	}
	if path.Base(key) != key || strings.ContainsAny(key, "\\\x00") {
		return InvalidOperation("invalid archive key %q: must not be a path", key)
	}
	return nil
}
