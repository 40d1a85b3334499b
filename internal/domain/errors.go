// Package domain holds the error taxonomy shared across the pipeline.
package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies pipeline failures. Every failure is recovered at the
// nearest boundary (stage, document or merge) and represented as data; these
// types are what the boundaries record.
type ErrorType string

const (
	ErrorTypeStageMissing ErrorType = "stage_missing"
	ErrorTypeStageInput   ErrorType = "stage_input_missing"
	ErrorTypeStageExec    ErrorType = "stage_execution"
	ErrorTypeMergeRead    ErrorType = "merge_read"
	ErrorTypeWorkspace    ErrorType = "workspace"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeAPI          ErrorType = "api"
	ErrorTypeDecode       ErrorType = "decode"
)

// DomainError represents a classified error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func StageMissingError(message string, err error) *DomainError {
	return NewError(ErrorTypeStageMissing, message, err)
}

func StageInputError(message string, err error) *DomainError {
	return NewError(ErrorTypeStageInput, message, err)
}

func StageExecError(message string, err error) *DomainError {
	return NewError(ErrorTypeStageExec, message, err)
}

func MergeReadError(message string, err error) *DomainError {
	return NewError(ErrorTypeMergeRead, message, err)
}

func WorkspaceError(message string, err error) *DomainError {
	return NewError(ErrorTypeWorkspace, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func DecodeError(message string, err error) *DomainError {
	return NewError(ErrorTypeDecode, message, err)
}

// TypeOf reports the ErrorType of err when it is (or wraps) a DomainError.
func TypeOf(err error) (ErrorType, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type, true
	}
	return "", false
}
