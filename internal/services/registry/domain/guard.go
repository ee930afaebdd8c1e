package domain

import (
	"strconv"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
)

// RequireOwner fails with AuthFailure unless invoker owns record.
func RequireOwner(record Record, invoker Identity) error {
	if record.Owner != invoker {
		return apperrors.WithMetadata(apperrors.CodeAuthFailure,
			"invoker is not the owner of record "+strconv.FormatUint(record.Key, 10),
			keyMetadata(record.Key))
	}
	return nil
}

// RecordNotFound builds the error reported for an unknown key.
func RecordNotFound(key uint64) error {
	return apperrors.WithMetadata(apperrors.CodeRecordNotFound,
		"record "+strconv.FormatUint(key, 10)+" not found",
		keyMetadata(key))
}

// RecordAlreadyExists builds the error reported when a storage engine already
// holds the allocated key.
func RecordAlreadyExists(key uint64) error {
	return apperrors.WithMetadata(apperrors.CodeRecordAlreadyExists,
		"record "+strconv.FormatUint(key, 10)+" already exists",
		keyMetadata(key))
}

// PermissionDenied builds the error reported when no access entry exists.
func PermissionDenied(key uint64) error {
	return apperrors.WithMetadata(apperrors.CodePermissionDenied,
		"no access entry for record "+strconv.FormatUint(key, 10),
		keyMetadata(key))
}

func keyMetadata(key uint64) map[string]string {
	return map[string]string{"RecordKey": strconv.FormatUint(key, 10)}
}
