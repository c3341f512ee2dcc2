package app

import (
	"fmt"
	"net/http"
)

// DomainError carries the HTTP status and stable error code a failure maps
// to, so handlers can translate service errors without inspecting messages.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func invalidInput(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: message}
}
