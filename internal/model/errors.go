package model

import "errors"

var (
	// ErrUnreadableDocument marks a source that cannot be opened or parsed.
	// It is the only analysis error that fails a document.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrDetectorUnavailable marks a failed visual detection run
	ErrDetectorUnavailable = errors.New("visual detector unavailable")

	// ErrMalformedRule marks a requirement rule that cannot be compiled
	ErrMalformedRule = errors.New("malformed requirement rule")

	ErrUnknownCategory = errors.New("unknown product category")
	ErrUnknownDocType  = errors.New("unknown document type")
)
