package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the domain error type shared across handlers and stores.
// Every error carries the HTTP status it translates to at the boundary.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error for server-side logging while
// keeping the client-facing message unchanged.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: e.Message, cause: cause}
}

// Is matches errors by code so wrapped instances compare equal to the
// constructors' output.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newError(code string, status int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated means no usable credential was presented.
func Unauthenticated(message string) *Error {
	return newError("unauthenticated", http.StatusUnauthorized, "%s", message)
}

// InvalidToken means a credential was presented but rejected.
func InvalidToken(message string) *Error {
	return newError("invalid_token", http.StatusUnauthorized, "%s", message)
}

// PermissionDenied means the caller is authenticated but lacks the role or
// tenant scope for the operation. Distinct from Unauthenticated.
func PermissionDenied(message string) *Error {
	return newError("permission_denied", http.StatusForbidden, "%s", message)
}

// NotFound reports a missing resource.
func NotFound(resource string, identifier interface{}) *Error {
	return newError("not_found", http.StatusNotFound, "%s not found: %v", resource, identifier)
}

// AlreadyExists reports a uniqueness violation.
func AlreadyExists(resource, field string) *Error {
	return newError("already_exists", http.StatusBadRequest, "%s already exists (field: %s)", resource, field)
}

// Validation reports malformed input or a business-rule violation.
func Validation(format string, args ...interface{}) *Error {
	return newError("validation", http.StatusBadRequest, format, args...)
}

// InvalidOperation reports an operation that cannot be performed, such as an
// empty order.
func InvalidOperation(message string) *Error {
	return newError("invalid_operation", http.StatusBadRequest, "%s", message)
}

// InsufficientQuantity reports a stock shortfall for a product.
func InsufficientQuantity(productName string, available, requested int) *Error {
	return newError("insufficient_quantity", http.StatusBadRequest,
		"insufficient stock for product %s. Available: %d, requested: %d", productName, available, requested)
}

// Service reports a failing external dependency (identity provider, database).
func Service(message string) *Error {
	return newError("service_error", http.StatusBadGateway, "%s", message)
}

// Internal is the fallback for unexpected failures.
func Internal(message string) *Error {
	return newError("internal", http.StatusInternalServerError, "%s", message)
}
