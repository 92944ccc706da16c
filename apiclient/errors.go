package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ErrorCode is the machine readable code carried in an API error body
type ErrorCode string

const (
	// CodeTokenExpired means the access token is past its expiry and can be refreshed
	CodeTokenExpired ErrorCode = "token.expired"
	// CodeTokenInvalid means the access token could not be decoded and can be refreshed
	CodeTokenInvalid ErrorCode = "token.invalid"
)

// Refreshable reports whether a 401 with this code should trigger a refresh cycle.
// Every other code is a genuine authorization failure.
func (c ErrorCode) Refreshable() bool {
	return c == CodeTokenExpired || c == CodeTokenInvalid
}

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps 401 responses onto the auth error kinds
func (e *APIError) Unwrap() error {
	if e.StatusCode != http.StatusUnauthorized {
		return nil
	}
	switch e.Code {
	case CodeTokenExpired:
		return autherrors.ErrTokenExpired
	case CodeTokenInvalid:
		return autherrors.ErrInvalidToken
	default:
		return autherrors.ErrUnauthorized
	}
}

// RefreshError is delivered to every request queued behind a failed refresh
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", autherrors.ErrRefreshFailed, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{autherrors.ErrRefreshFailed, e.Err}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// readAPIError consumes and closes the response body
func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	apiErr.Code = ErrorCode(body.Code)
	if body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}
