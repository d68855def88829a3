package errors

import (
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter turns classified errors into API status codes and payloads.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the error body the daemon API returns.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor maps err's category to a status. Plain errors are 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if ce, ok := AsClassified(err); ok {
		return traitsOf(ce.category).status
	}
	return unclassified.status
}

// FormatErrorResponse builds the payload for err. Internal failures are not
// described to clients; the cause is logged instead.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	ce, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	if ce.category == CategoryInternal {
		a.logger.Error("Internal error in API request", slog.String("error", ce.Error()))
		return HTTPErrorResponse{Error: "internal error", Code: string(ce.category)}
	}
	resp := HTTPErrorResponse{
		Error:     ce.message,
		Code:      string(ce.category),
		Retryable: ce.IsTransient(),
	}
	if len(ce.context) > 0 {
		resp.Details = ce.context
	}
	return resp
}
