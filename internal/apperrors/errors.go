package apperrors

import "errors"

var (
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrFileTooLarge       = errors.New("file too large")
	ErrInactiveAccount    = errors.New("account inactive")
	ErrInvalidInput       = errors.New("invalid input")
	ErrScaling            = errors.New("scaling failed")
	ErrGeometryExtraction = errors.New("geometry extraction failed")
	ErrExport             = errors.New("export failed")
	ErrAlreadyRunning     = errors.New("project is already running")
	ErrNotFound           = errors.New("not found")
	ErrIllegalTransition  = errors.New("illegal status transition")
)
