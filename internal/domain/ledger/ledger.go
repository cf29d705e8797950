// Package ledger defines the error taxonomy shared by all storage-backed
// components. Business rejections are plain sentinel errors owned by the
// domain packages; anything that indicates the store itself failed (connection
// loss, commit failure, transaction timeout) is wrapped in a StorageError so
// callers can distinguish retryable infrastructure failures from final
// business answers.
package ledger

import "github.com/go-faster/errors"

// StorageError wraps an underlying store failure. Settlements and claims that
// fail with a StorageError leave no partial state behind and may be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "ledger: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// WrapStorage wraps err as a StorageError for the given operation.
// It returns nil when err is nil.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err (or anything it wraps) is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
