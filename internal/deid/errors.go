// Package deid orchestrates the de-identification pipeline: document load,
// OCR, PHI detection, entity matching, mask painting, and save.
package deid

import "errors"

// Error kinds, in order of severity. Collaborator failures are converted
// to these at the boundary; provider-specific error types never leak.
var (
	// ErrCancelled means the caller requested abort
	ErrCancelled = errors.New("deidentification cancelled")

	// ErrDocumentLoad means the document bytes are unreadable or the
	// format is unsupported; fatal for the request
	ErrDocumentLoad = errors.New("document load failed")

	// ErrOCRProvider means the OCR collaborator failed; retryable by the
	// caller, not inside the pipeline
	ErrOCRProvider = errors.New("ocr provider failed")

	// ErrPHIProvider means the PHI detection collaborator failed
	ErrPHIProvider = errors.New("phi provider failed")

	// ErrInvalidGeometry means a word or page has negative or non-finite
	// dimensions; fatal
	ErrInvalidGeometry = errors.New("invalid geometry")
)
