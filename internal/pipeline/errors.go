package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// ErrorCode classifies input failures.
type ErrorCode string

const (
	CodeImageNotFound     ErrorCode = "IMAGE_NOT_FOUND"
	CodeImageDecodeFailed ErrorCode = "IMAGE_DECODE_FAILED"
	CodeInvalidRegion     ErrorCode = "INVALID_REGION"
)

// InputError reports a problem with the caller's input rather than with
// the pipeline itself.
type InputError struct {
	Code    ErrorCode
	Path    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// loadError classifies an image loading failure.
func loadError(path string, err error) *InputError {
	if errors.Is(err, os.ErrNotExist) {
		return &InputError{Code: CodeImageNotFound, Path: path, Message: "image not found", Cause: err}
	}
	return &InputError{Code: CodeImageDecodeFailed, Path: path, Message: "failed to decode image", Cause: err}
}
