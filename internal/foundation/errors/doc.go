// Package errors classifies failures raised while building sites.
//
// Every error that crosses a package boundary in the build path is a
// ClassifiedError. Its category decides three things at once: how severe the
// failure is by default, which exit code the CLI returns, and which HTTP status
// the daemon API answers with. The table lives in categories.go.
//
//	err := errors.WrapError(cause, errors.CategoryContent, "content fetch failed").
//		WithContext("url", endpoint).
//		Build()
package errors
