package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	// ErrNotFound marks errors caused by a missing remote object.
	ErrNotFound = errors.New("object not found")
	// ErrStorageUnavailable marks every other service or transport failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// NotFoundError conveys that a specific object was not found in the store.
// Err keeps the service error for diagnostics and may be nil.
type NotFoundError struct {
	Key string
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return "object not found"
	}
	return fmt.Sprintf("%s: not found", e.Key)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Err}
}

// StorageError wraps a failed round trip that is not a missing object, such as
// authorization failures, throttling or network faults.
type StorageError struct {
	Op     string
	Key    string
	Status int
	Err    error
}

func (e *StorageError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.Key, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// IsNotFound reports whether err represents a missing remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err is a storage failure other than not-found.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// Classify translates an error returned by the blob service into the error
// taxonomy. Cancellation is wrapped but keeps its context error identity.
func Classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	status := statusCode(err)
	if kindForStatus(status) == ErrNotFound {
		return &NotFoundError{Key: key, Err: err}
	}
	return &StorageError{Op: op, Key: key, Status: status, Err: err}
}

// kindForStatus maps an HTTP status reported by the service to an error kind.
func kindForStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrStorageUnavailable
	}
}

// statusCode extracts the HTTP status of a failed request. Typed S3 not-found
// errors count as 404 even when no response is attached.
func statusCode(err error) int {
	var (
		notFound *types.NotFound
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
	)
	if errors.As(err, &notFound) || errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return http.StatusNotFound
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
