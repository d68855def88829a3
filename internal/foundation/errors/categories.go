package errors

import "net/http"

// ErrorCategory is the broad class of a failure.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// Pipeline stages.
	CategoryContent      ErrorCategory = "content"
	CategoryNetwork      ErrorCategory = "network"
	CategoryAsset        ErrorCategory = "asset"
	CategoryTemplate     ErrorCategory = "template"
	CategoryToolchain    ErrorCategory = "toolchain"
	CategoryVerification ErrorCategory = "verification"
	CategoryFileSystem   ErrorCategory = "filesystem"

	CategoryEventStore ErrorCategory = "eventstore"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryDaemon     ErrorCategory = "daemon"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity says whether a failure stops the build.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// RetryStrategy tells callers whether running the operation again can help.
type RetryStrategy string

const (
	RetryNever   RetryStrategy = "never"
	RetryBackoff RetryStrategy = "backoff"
)

// categoryTraits is the single source for defaults and adapter mappings.
type categoryTraits struct {
	severity ErrorSeverity
	exitCode int
	status   int
}

var traits = map[ErrorCategory]categoryTraits{
	CategoryValidation:   {SeverityFatal, 2, http.StatusBadRequest},
	CategoryNotFound:     {SeverityError, 4, http.StatusNotFound},
	CategoryConfig:       {SeverityFatal, 7, http.StatusBadRequest},
	CategoryContent:      {SeverityFatal, 8, http.StatusBadGateway},
	CategoryNetwork:      {SeverityError, 8, http.StatusBadGateway},
	CategoryTemplate:     {SeverityFatal, 9, http.StatusNotFound},
	CategoryInternal:     {SeverityFatal, 10, http.StatusInternalServerError},
	CategoryToolchain:    {SeverityFatal, 11, http.StatusUnprocessableEntity},
	CategoryAsset:        {SeverityWarning, 11, http.StatusUnprocessableEntity},
	CategoryVerification: {SeverityWarning, 11, http.StatusUnprocessableEntity},
	CategoryFileSystem:   {SeverityError, 11, http.StatusInternalServerError},
	CategoryEventStore:   {SeverityError, 12, http.StatusServiceUnavailable},
	CategoryRuntime:      {SeverityFatal, 12, http.StatusServiceUnavailable},
	CategoryDaemon:       {SeverityFatal, 12, http.StatusServiceUnavailable},
}

// unclassified applies to categories missing from the table and to plain errors.
var unclassified = categoryTraits{SeverityError, 1, http.StatusInternalServerError}

func traitsOf(c ErrorCategory) categoryTraits {
	if t, ok := traits[c]; ok {
		return t
	}
	return unclassified
}

// ErrorContext carries structured details such as the URL or directory involved.
type ErrorContext map[string]any

// Set stores value under key, allocating the map on first use.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get returns the value stored under key.
func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}
