package storage

import "errors"

var (
	// ErrNotFound is returned when no record carries the requested ID.
	ErrNotFound = errors.New("submission not found")

	// ErrStoreIO wraps failures reading or writing the workbook file.
	ErrStoreIO = errors.New("store file error")

	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidDate is returned for booking dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid booking date")
)
