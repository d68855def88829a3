package errors

import (
	stdErrors "errors"
	"fmt"
)

// ClassifiedError is a failure with a category, a severity and optional context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Context() ErrorContext        { return e.context }

// IsFatal reports whether the failure must stop the build.
func (e *ClassifiedError) IsFatal() bool { return e.severity == SeverityFatal }

// IsTransient reports whether a later attempt may succeed.
func (e *ClassifiedError) IsTransient() bool { return e.retry == RetryBackoff }

// AsClassified finds the first ClassifiedError in err's chain. Stage errors
// wrap classified causes, so a type assertion on err itself is not enough.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCategory reports whether err's chain carries a ClassifiedError of category.
func HasCategory(err error, category ErrorCategory) bool {
	ce, ok := AsClassified(err)
	return ok && ce.category == category
}

// HasSeverity reports whether err's chain carries a ClassifiedError of severity.
func HasSeverity(err error, severity ErrorSeverity) bool {
	ce, ok := AsClassified(err)
	return ok && ce.severity == severity
}

// GetCategory returns err's category, or CategoryInternal for plain errors.
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.category
	}
	return CategoryInternal
}

// GetRetryStrategy returns err's retry strategy, or RetryNever for plain errors.
func GetRetryStrategy(err error) RetryStrategy {
	if ce, ok := AsClassified(err); ok {
		return ce.retry
	}
	return RetryNever
}
