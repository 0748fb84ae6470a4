package album

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by the query set when no album matches; lookups do
// not distinguish a missing document from a malformed key.
var ErrNotFound = errors.New("album: not found")

// PathError reports an invalid relationship between the album root and an
// album directory, or an unresolvable public URL.
type PathError struct {
	Root   string
	Dir    string
	Reason string
}

func (e *PathError) Error() string {
	if e.Root != "" {
		return fmt.Sprintf("album: invalid path %q under root %q: %s", e.Dir, e.Root, e.Reason)
	}
	return fmt.Sprintf("album: invalid path %q: %s", e.Dir, e.Reason)
}

// PipelineError reports a fatal metadata or size-generation failure,
// identifying the image and, for resizes, the failing geometry.
type PipelineError struct {
	Image    string
	Geometry string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Geometry != "" {
		return fmt.Sprintf("album: pipeline failed for %s at %s: %v", e.Image, e.Geometry, e.Err)
	}
	return fmt.Sprintf("album: pipeline failed for %s: %v", e.Image, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// InitError wraps whatever aborted initialization; a partially initialized
// album must not be used.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("album: init failed: %v", e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// PersistenceError reports a document-store write that errored (as opposed to
// a silent no-op, which Save surfaces through SaveResult.OK).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("album: %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
