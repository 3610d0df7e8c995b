package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error types
var (
	// ErrProductNotFound indicates a product was not found
	ErrProductNotFound = errors.New("product not found")

	// ErrForbidden indicates the caller lacks the privilege for an operation
	ErrForbidden = errors.New("you do not have permission to perform this action")

	// ErrUnauthenticated indicates an identity is required but none was supplied
	ErrUnauthenticated = errors.New("authentication credentials were not provided")

	// ErrDuplicateTitle indicates another product already uses the title
	ErrDuplicateTitle = errors.New("product with this title already exists")

	// ErrInvalidRequest indicates the request could not be interpreted
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSearchUnavailable indicates the search index could not answer a query
	ErrSearchUnavailable = errors.New("search index unavailable")
)

// Validation failure codes
const (
	CodeMissingRequiredField   = "MissingRequiredField"
	CodeTitleTooLong           = "TitleTooLong"
	CodeContentPolicyViolation = "ContentPolicyViolation"
	CodeDuplicateTitle         = "DuplicateTitle"
	CodeMalformedPrice         = "MalformedPrice"
	CodeMalformedBoolean       = "MalformedBoolean"
)

// FieldError describes one violated rule on a single field
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists, per field, the rules a proposed product violated
type ValidationError struct {
	Fields map[string][]FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		for _, fe := range e.Fields[name] {
			parts = append(parts, fmt.Sprintf("%s: %s", name, fe.Message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation for field.
func (e *ValidationError) Add(field, code, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]FieldError)
	}
	e.Fields[field] = append(e.Fields[field], FieldError{Code: code, Message: message})
}

// Has reports whether field failed with code.
func (e *ValidationError) Has(field, code string) bool {
	for _, fe := range e.Fields[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// Empty reports whether no violations were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Messages flattens the violations into field -> messages.
func (e *ValidationError) Messages() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for name, errs := range e.Fields {
		for _, fe := range errs {
			out[name] = append(out[name], fe.Message)
		}
	}
	return out
}

// Is lets errors.Is(err, ErrDuplicateTitle) match a duplicate title failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrDuplicateTitle && e.Has("title", CodeDuplicateTitle)
}

// AuthorizationError is returned when the permission gate denies an operation
type AuthorizationError struct {
	Op  Operation
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s denied: %v", e.Op, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// ProductError represents an error related to product operations
type ProductError struct {
	ID  int64
	Op  string
	Err error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product operation %s failed for product %d: %v", e.Op, e.ID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// IndexSyncError represents a failed write to the search index
type IndexSyncError struct {
	ID  int64
	Op  string
	Err error
}

func (e *IndexSyncError) Error() string {
	return fmt.Sprintf("index %s failed for product %d: %v", e.Op, e.ID, e.Err)
}

func (e *IndexSyncError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the product does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

// IsForbidden reports whether err is a permission denial.
func IsForbidden(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
