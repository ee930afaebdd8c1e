// Package pagination normalizes page sizes and key-ordered page tokens.
package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// EncodeCursor renders the last key of a page as the next page token.
// Zero means there is no next page.
func EncodeCursor(lastKey uint64) string {
	if lastKey == 0 {
		return ""
	}
	return strconv.FormatUint(lastKey, 10)
}

// DecodeCursor parses a page token produced by EncodeCursor. The empty token
// starts from the beginning.
func DecodeCursor(token string) (uint64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return value, nil
}
