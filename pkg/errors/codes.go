package errors

type ErrorCode string

const (
	ErrIOGeneral ErrorCode = "IO_GENERAL"

	ErrSystemInternal     ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemInvalidInput ErrorCode = "SYSTEM_INVALID_INPUT"

	ErrValidationInvalidData  ErrorCode = "VALIDATION_INVALID_DATA"
	ErrValidationRequired     ErrorCode = "VALIDATION_REQUIRED"
	ErrValidationOutOfRange   ErrorCode = "VALIDATION_OUT_OF_RANGE"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	ErrFileInUse           ErrorCode = "FILE_IN_USE"
	ErrChunkReadFailed     ErrorCode = "CHUNK_READ_FAILED"
	ErrChunkWriteFailed    ErrorCode = "CHUNK_WRITE_FAILED"
	ErrChunkMissing        ErrorCode = "CHUNK_MISSING"
	ErrChecksumMismatch    ErrorCode = "CHECKSUM_MISMATCH"
	ErrMetadataReadFailed  ErrorCode = "METADATA_READ_FAILED"
	ErrMetadataWriteFailed ErrorCode = "METADATA_WRITE_FAILED"
	ErrMetadataCorrupt     ErrorCode = "METADATA_CORRUPT"
	ErrStoreExistsFailed   ErrorCode = "STORE_EXISTS_FAILED"
	ErrStoreDeleteFailed   ErrorCode = "STORE_DELETE_FAILED"
	ErrStoreListFailed     ErrorCode = "STORE_LIST_FAILED"
	ErrStoreOpenFailed     ErrorCode = "STORE_OPEN_FAILED"

	ErrLockAccountingViolation ErrorCode = "LOCK_ACCOUNTING_VIOLATION"
	ErrLockUnknownStrategy     ErrorCode = "LOCK_UNKNOWN_STRATEGY"
)
