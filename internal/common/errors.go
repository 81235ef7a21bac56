package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Extraction error taxonomy. Only engine unavailability (see ocr.ErrEngineUnavailable)
// is allowed to escape a document's extraction; everything here is recovered and
// recorded as a diagnostic on the result.
var (
	ErrPageOutOfRange    = errors.New("page index out of range")
	ErrRegionOutOfBounds = errors.New("region outside page image")
	ErrOCRTimeout        = errors.New("ocr timed out")
	ErrOCRFailure        = errors.New("ocr failed")
	ErrRasterize         = errors.New("page rasterization failed")
	ErrNoMatch           = errors.New("pattern did not match")
	ErrCanonicalization  = errors.New("canonicalization failed")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error codes used with AppError.
const (
	CodeConfig  = "CONFIG_ERROR"
	CodePattern = "PATTERN_ERROR"
	CodePreset  = "PRESET_ERROR"
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
