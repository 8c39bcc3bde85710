package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the evaluation service.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an *Error with status 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorBody is the FastAPI error envelope. Detail is either a string or a
// list of validation problems.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationProblem struct {
	Msg string `json:"msg"`
}

// newError builds an *Error from a response status and body. The message is
// the body's detail when it has one, else "HTTP <code>: <status text>".
func newError(status int, body []byte, requestID string) *Error {
	return &Error{
		Status:    status,
		Message:   errorMessage(status, body),
		RequestID: requestID,
	}
}

func errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil && s != "" {
			return s
		}
		var problems []validationProblem
		if err := json.Unmarshal(eb.Detail, &problems); err == nil && len(problems) > 0 && problems[0].Msg != "" {
			return problems[0].Msg
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}
