package retry

import "errors"

// Kind classifies a failure so a Policy can decide whether to retry it.
type Kind string

const (
	// KindTimeout marks an overloaded or timed-out connection attempt.
	KindTimeout Kind = "timeout"
	// KindNetwork marks an I/O fault talking to the chat service.
	KindNetwork Kind = "network"
	// KindDriver marks a browser session or page-content fault.
	KindDriver Kind = "driver"
	// KindPending marks content that is not present yet.
	KindPending Kind = "pending"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return string(e.kind) + ": " + e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Mark tags err with kind. A nil err stays nil.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the outermost kind attached to err, or "" when unmarked.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ""
}

// Is reports whether err carries one of kinds.
func Is(err error, kinds ...Kind) bool {
	k := KindOf(err)
	if k == "" {
		return false
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
