package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeRecordAlreadyExists = "RECORD_ALREADY_EXISTS"
	CodeAuthFailure         = "AUTH_FAILURE"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeInvalidMetadata     = "INVALID_METADATA"
	CodeInvalidMetrics      = "INVALID_METRICS"
	CodeInvalidTaxonomy     = "INVALID_TAXONOMY"
	CodeInvalidOperator     = "INVALID_OPERATOR"
)

var enUSCatalog = &Catalog{
	locale: BaseLocale,
	messages: map[Code]string{
		CodeRecordNotFound:      "Record {{.RecordKey}} was not found",
		CodeRecordAlreadyExists: "Record {{.RecordKey}} already exists",
		CodeAuthFailure:         "Only the record owner may change record {{.RecordKey}}",
		CodePermissionDenied:    "No access grant exists for this identity on record {{.RecordKey}}",
		CodeInvalidMetadata:     "Field {{.Field}} must be between {{.Min}} and {{.Max}} bytes",
		CodeInvalidMetrics:      "Data metric must be greater than 0 and less than 1000000000",
		CodeInvalidTaxonomy:     "Taxonomy must have 1 to 10 labels of 1 to 32 bytes each",
		CodeInvalidOperator:     "Invalid operator identity",
	},
}
