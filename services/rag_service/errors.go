package rag_service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the knowledge-base pipelines. Use errors.Is to
// test an error against a kind.
var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrDecodeFailure     = errors.New("decode failure")
	ErrExtraction        = errors.New("extraction failure")
	ErrEmbedding         = errors.New("embedding failure")
	ErrIndex             = errors.New("index failure")
	ErrGeneration        = errors.New("generation failure")
	ErrLifecycle         = errors.New("lifecycle failure")
)

// KBError tags an underlying error with one of the failure kinds above.
type KBError struct {
	Kind error
	Err  error
}

func (e *KBError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KBError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newKBError(kind, err error) error {
	if err == nil {
		return nil
	}
	var existing *KBError
	if errors.As(err, &existing) && errors.Is(existing.Kind, kind) {
		return err
	}
	return &KBError{Kind: kind, Err: err}
}
