package errors

import (
	"errors"
	"fmt"
)

var (
	ErrLinkNotFound     = errors.New("link not found")
	ErrShortCodeExists  = errors.New("short code already exists")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrInvalidShortCode = errors.New("invalid short code")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap связывает ошибку поля с сентинелом, чтобы работал errors.Is
func (e *ValidationError) Unwrap() error {
	switch e.Field {
	case "target_url":
		return ErrInvalidURL
	case "custom_code":
		return ErrInvalidShortCode
	default:
		return nil
	}
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConflictError - коллизия короткого кода при создании ссылки
type ConflictError struct {
	ShortCode string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("short code '%s' is already in use", e.ShortCode)
}

func (e *ConflictError) Unwrap() error {
	return ErrShortCodeExists
}

func NewConflictError(shortCode string) *ConflictError {
	return &ConflictError{ShortCode: shortCode}
}

// StorageError - неожиданная ошибка хранилища ссылок
type StorageError struct {
	Op  string // Операция: "find", "create", "click", "delete", "list", "ping"
	Err error  // Оригинальная ошибка
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) error {
	return &StorageError{
		Op:  op,
		Err: err,
	}
}

type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

const CodeShortCodeGeneration = "SHORT_CODE_GENERATION"

// IsValidationError проверяет является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsBusinessError проверяет является ли ошибка бизнес-ошибкой
func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}

func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

// GetBusinessError извлекает BusinessError из ошибки
func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}

func GetConflictError(err error) *ConflictError {
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr
	}
	return nil
}
