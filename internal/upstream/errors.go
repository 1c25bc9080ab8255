package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	ErrNetwork ErrorKind = iota + 1
	ErrHTTPStatus
	ErrDecode
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrHTTPStatus:
		return "http_status"
	case ErrDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is returned by Fetcher.Fetch for every failure.
type FetchError struct {
	Kind   ErrorKind
	Status int // set for ErrHTTPStatus
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case ErrHTTPStatus:
		return fmt.Sprintf("upstream %s: HTTP %d", e.URL, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("upstream %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("upstream %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf reports the ErrorKind carried by err, or 0 when err is not a
// *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
