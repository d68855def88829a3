package errors

import "maps"

// ErrorBuilder assembles a ClassifiedError.
// Severity starts at the category default and can be overridden.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder for a failure without an underlying cause.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return WrapError(nil, category, message)
}

// WrapError starts a builder that wraps cause.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: traitsOf(category).severity,
		retry:    RetryNever,
		message:  message,
		cause:    cause,
	}}
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { b.err.severity = SeverityFatal; return b }
func (b *ErrorBuilder) Warning() *ErrorBuilder { b.err.severity = SeverityWarning; return b }

// Retryable marks the failure as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { b.err.retry = RetryBackoff; return b }

// WithContext attaches a detail that adapters expose to users.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// Build returns the error. The builder may be reused; later changes do not
// affect errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	out.context = maps.Clone(b.err.context)
	return &out
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }
func NotFoundError(message string) *ErrorBuilder   { return NewError(CategoryNotFound, message) }
func AssetError(message string) *ErrorBuilder      { return NewError(CategoryAsset, message) }
func ToolchainError(message string) *ErrorBuilder  { return NewError(CategoryToolchain, message) }
func RuntimeError(message string) *ErrorBuilder    { return NewError(CategoryRuntime, message) }
func DaemonError(message string) *ErrorBuilder     { return NewError(CategoryDaemon, message) }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message) }

// VerificationWarning reports a missing or unexpected build artifact.
func VerificationWarning(message string) *ErrorBuilder {
	return NewError(CategoryVerification, message)
}
