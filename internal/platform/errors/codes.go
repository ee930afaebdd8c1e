// Package errors provides structured registry errors with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Record lifecycle errors
	CodeRecordNotFound      Code = "RECORD_NOT_FOUND"
	CodeRecordAlreadyExists Code = "RECORD_ALREADY_EXISTS"

	// Authorization errors
	CodeAuthFailure      Code = "AUTH_FAILURE"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Field validation errors
	CodeInvalidMetadata Code = "INVALID_METADATA"
	CodeInvalidMetrics  Code = "INVALID_METRICS"
	CodeInvalidTaxonomy Code = "INVALID_TAXONOMY"

	// Identity errors
	CodeInvalidOperator Code = "INVALID_OPERATOR"
)

// Stable numeric codes. These values are part of the wire contract and are
// never renumbered or reused.
var numericCodes = map[Code]uint32{
	CodeRecordNotFound:      1,
	CodeRecordAlreadyExists: 2,
	CodeAuthFailure:         3,
	CodeInvalidMetadata:     4,
	CodeInvalidMetrics:      5,
	CodeInvalidTaxonomy:     6,
	CodePermissionDenied:    7,
	CodeInvalidOperator:     8,
}

// Numeric returns the stable small-integer form of the code, or 0 for codes
// outside the registry taxonomy.
func (c Code) Numeric() uint32 {
	return numericCodes[c]
}

// CodeFromNumeric resolves a stable numeric code back to its Code.
func CodeFromNumeric(n uint32) Code {
	for code, value := range numericCodes {
		if value == n {
			return code
		}
	}
	return CodeUnknown
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidMetadata,
		CodeInvalidMetrics,
		CodeInvalidTaxonomy,
		CodeInvalidOperator:
		return codes.InvalidArgument

	// PermissionDenied - caller is not allowed
	case CodeAuthFailure,
		CodePermissionDenied:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeRecordNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeRecordAlreadyExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
