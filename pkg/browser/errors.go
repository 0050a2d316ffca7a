package browser

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a remote browser call. A kind is assigned once,
// where the remote call is made, and is read downstream with KindOf.
type Kind int

const (
	// KindUnknown is any failure that does not fit another kind
	KindUnknown Kind = iota
	// KindUnreachable means the endpoint process is gone or not answering
	KindUnreachable
	// KindLocateTimeout means the element did not appear within its bound
	KindLocateTimeout
	// KindNavigation means a page failed to load (network or load timeout)
	KindNavigation
	// KindBlocked means the element exists but could not receive the action
	KindBlocked
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindLocateTimeout:
		return "locate_timeout"
	case KindNavigation:
		return "navigation"
	case KindBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Error is a classified browser failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// IsUnreachable reports whether err means the endpoint is gone.
func IsUnreachable(err error) bool {
	return err != nil && KindOf(err) == KindUnreachable
}

// IsLocateTimeout reports whether err means an element was not found in time.
func IsLocateTimeout(err error) bool {
	return err != nil && KindOf(err) == KindLocateTimeout
}
