package store

import (
	"errors"
	"fmt"

	"github.com/twotier/kvcache/store/metadb"
)

// Kind classifies why a KVStorage operation failed.
type Kind int

const (
	// KindInvalidArgument: the caller passed an empty key, an empty value,
	// or an empty filename where the storage mode requires one.
	KindInvalidArgument Kind = iota
	// KindIO: a filestore read/write/delete failed.
	KindIO
	// KindDBBusy: metadb reported a transient SQLITE_BUSY/LOCKED condition.
	KindDBBusy
	// KindDBFailure: metadb reported a non-transient driver failure.
	KindDBFailure
	// KindDBUnavailable: metadb's reopen gate is in effect.
	KindDBUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindIO:
		return "io"
	case KindDBBusy:
		return "db_busy"
	case KindDBFailure:
		return "db_failure"
	case KindDBUnavailable:
		return "db_unavailable"
	default:
		return "unknown"
	}
}

// Error wraps an underlying failure with a Kind classification and the
// operation name that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is (or wraps) a *Error of the given Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func invalidArg(op string, err error) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: err}
}

func ioErr(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// fromDBErr classifies a metadb error into the store's own Kind taxonomy.
func fromDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case metadb.IsBusy(err):
		return &Error{Kind: KindDBBusy, Op: op, Err: err}
	case metadb.IsUnavailable(err):
		return &Error{Kind: KindDBUnavailable, Op: op, Err: err}
	default:
		return &Error{Kind: KindDBFailure, Op: op, Err: err}
	}
}
