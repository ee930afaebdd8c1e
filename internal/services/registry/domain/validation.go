package domain

import (
	"strconv"
	"unicode/utf8"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
)

// Field bounds. Text lengths are measured in bytes and text must be UTF-8.
const (
	MinMetadataLen = 1
	MaxMetadataLen = 64
	MinNotesLen    = 1
	MaxNotesLen    = 128
	MinLabelLen    = 1
	MaxLabelLen    = 32
	MinLabels      = 1
	MaxLabels      = 10

	// MaxMetric is exclusive.
	MaxMetric uint64 = 1_000_000_000
)

// ValidMetadata reports whether s is 1 to 64 bytes of UTF-8.
func ValidMetadata(s string) bool {
	return validText(s, MinMetadataLen, MaxMetadataLen)
}

// ValidNotes reports whether s is 1 to 128 bytes of UTF-8.
func ValidNotes(s string) bool {
	return validText(s, MinNotesLen, MaxNotesLen)
}

// ValidMetric reports whether n is in (0, MaxMetric).
func ValidMetric(n uint64) bool {
	return n > 0 && n < MaxMetric
}

// ValidLabel reports whether s is 1 to 32 bytes of UTF-8.
func ValidLabel(s string) bool {
	return validText(s, MinLabelLen, MaxLabelLen)
}

func validText(s string, minLen, maxLen int) bool {
	return len(s) >= minLen && len(s) <= maxLen && utf8.ValidString(s)
}

// ValidTaxonomy requires 1 to 10 labels, each valid. Duplicates are allowed.
func ValidTaxonomy(labels []string) bool {
	if len(labels) < MinLabels || len(labels) > MaxLabels {
		return false
	}
	for _, label := range labels {
		if !ValidLabel(label) {
			return false
		}
	}
	return true
}

// ValidateFields checks metadata, metric, notes, then taxonomy, and returns
// the error for the first rule that fails.
func ValidateFields(f Fields) error {
	if !ValidMetadata(f.Metadata) {
		return textBoundsError("metadata", f.Metadata, MinMetadataLen, MaxMetadataLen)
	}
	if !ValidMetric(f.Metric) {
		return apperrors.WithMetadata(apperrors.CodeInvalidMetrics,
			"data metric "+strconv.FormatUint(f.Metric, 10)+" is out of range",
			map[string]string{"Metric": strconv.FormatUint(f.Metric, 10)})
	}
	if !ValidNotes(f.Notes) {
		// Notes are descriptive metadata and share its error kind.
		return textBoundsError("notes", f.Notes, MinNotesLen, MaxNotesLen)
	}
	if !ValidTaxonomy(f.Taxonomy) {
		return apperrors.WithMetadata(apperrors.CodeInvalidTaxonomy,
			"taxonomy has "+strconv.Itoa(len(f.Taxonomy))+" labels or an out-of-range label",
			map[string]string{"Labels": strconv.Itoa(len(f.Taxonomy))})
	}
	return nil
}

func textBoundsError(field string, value string, minLen, maxLen int) error {
	message := field + " length " + strconv.Itoa(len(value)) + " is out of range"
	if !utf8.ValidString(value) {
		message = field + " is not valid UTF-8"
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidMetadata, message,
		map[string]string{
			"Field": field,
			"Min":   strconv.Itoa(minLen),
			"Max":   strconv.Itoa(maxLen),
		})
}
