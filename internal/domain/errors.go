package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSelfDeletion      = errors.New("cannot delete own account")
	ErrBatchTooLarge     = errors.New("batch exceeds operation limit")
	ErrPartialImport     = errors.New("import partially failed")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptyFile         = errors.New("no data")
	ErrSubscription      = errors.New("subscription failed")
	ErrClosed            = errors.New("closed")
)
