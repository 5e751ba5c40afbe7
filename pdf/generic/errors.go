package generic

import "fmt"

// PdfError is the base error type for PDF operations.
type PdfError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PdfError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PdfError) Unwrap() error {
	return e.Cause
}

// NewPdfError creates a new PdfError.
func NewPdfError(msg string) *PdfError {
	return &PdfError{Message: msg}
}

// WrapPdfError creates a PdfError with a cause.
func WrapPdfError(msg string, cause error) *PdfError {
	return &PdfError{Message: msg, Cause: cause}
}
