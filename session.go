package docview

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/logging"
	"github.com/gogpu/docview/internal/parallel"
)

// Session opens one document on a background lane.
//
// Exactly one of three outcomes happens: the completion callback receives
// the document, the callback receives a *DocumentOpenError, or the session
// was cancelled first and the callback is never called. A document opened
// by a cancelled session is closed before it can be observed.
type Session struct {
	lane *parallel.Lane
	done chan struct{}

	mu        sync.Mutex
	cancelled bool
	finished  bool

	// doc and err are written before done is closed.
	doc *Document
	err error
}

// Open starts opening src with dec and returns immediately. callback, which
// may be nil, runs on the session lane. viewport is the view size used to
// compute the initial layout.
//
// Options used by Open: layout options, WithPages and WithPassword.
func Open(ctx context.Context, dec decoder.Decoder, src decoder.Source, viewport geometry.Size,
	callback func(*Document, error), opts ...Option,
) *Session {
	o := buildOptions(opts)
	s := &Session{
		lane: parallel.NewLane("session"),
		done: make(chan struct{}),
	}
	s.lane.Submit(func() { s.run(ctx, dec, src, viewport, callback, o) })
	// The lane only ever runs this one task; Close drains it and exits.
	go s.lane.Close()
	return s
}

func (s *Session) run(ctx context.Context, dec decoder.Decoder, src decoder.Source, viewport geometry.Size,
	callback func(*Document, error), o options,
) {
	defer close(s.done)

	doc, err := load(ctx, dec, src, viewport, o)

	// Single publication point: after this, Cancel has no effect.
	s.mu.Lock()
	cancelled := s.cancelled
	s.finished = true
	s.mu.Unlock()

	if cancelled {
		if doc != nil {
			if cerr := doc.Close(); cerr != nil {
				logging.L().Warn("session: close after cancel", "err", cerr)
			}
		}
		s.err = ErrCancelled
		logging.L().Debug("session: open cancelled", "source", sourceName(src))
		return
	}

	s.doc, s.err = doc, err
	if err != nil {
		logging.L().Warn("session: open failed", "err", err)
	} else {
		logging.L().Info("session: document opened", "source", doc.Name(), "pages", doc.PageCount())
	}
	if callback != nil {
		callback(doc, err)
	}
}

func sourceName(src decoder.Source) string {
	if src == nil {
		return "<nil>"
	}
	return src.Name()
}

// load opens the document. Any failure is a *DocumentOpenError and leaves
// nothing open.
func load(ctx context.Context, dec decoder.Decoder, src decoder.Source, viewport geometry.Size, o options) (*Document, error) {
	name := sourceName(src)
	if dec == nil || src == nil {
		return nil, &DocumentOpenError{Source: name, Err: decoder.ErrUnsupportedSource}
	}

	h, err := dec.Open(ctx, src, o.password)
	if err != nil {
		return nil, &DocumentOpenError{Source: name, Err: err}
	}

	doc, err := newDocument(name, h, viewport, o)
	if err != nil {
		return nil, &DocumentOpenError{Source: name, Err: errors.Join(err, h.Close())}
	}
	return doc, nil
}

// Cancel prevents the session from publishing. It reports whether the
// cancellation took effect, which is false once the result was published.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.cancelled = true
	return true
}

// Done is closed when the session has finished, whatever the outcome.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes or ctx is done. It returns the
// published document or error, or ErrCancelled if the session was
// cancelled.
func (s *Session) Wait(ctx context.Context) (*Document, error) {
	select {
	case <-s.done:
		return s.doc, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
