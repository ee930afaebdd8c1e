// Package domain defines registry records, field validation, and the
// ownership guard shared by every registry operation.
package domain
