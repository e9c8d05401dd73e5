package app

import "fmt"

// DomainError carries an HTTP status and a machine-readable code through the
// service layer. mapError turns it into the client error envelope; backend
// rejections arrive here already carrying the upstream status (see
// mapBackendError).
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

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
