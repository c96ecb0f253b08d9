package docview

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Session.Wait when the session was cancelled
// before it published a result. It is never passed to the completion
// callback.
var ErrCancelled = errors.New("docview: open cancelled")

// ErrNoPages is wrapped in a DocumentOpenError when the document, after the
// user page mapping is applied, has no pages.
var ErrNoPages = errors.New("docview: no pages to show")

// DocumentOpenError reports a document that could not be opened: a bad
// source, a wrong password or a corrupt file. It is fatal to the session.
type DocumentOpenError struct {
	Source string
	Err    error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("docview: open %s: %v", e.Source, e.Err)
}

func (e *DocumentOpenError) Unwrap() error { return e.Err }
