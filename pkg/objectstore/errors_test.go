package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		notFound    bool
		unavailable bool
	}{
		{name: "status 404", err: responseError(http.StatusNotFound, errors.New("nope")), notFound: true},
		{name: "typed not found", err: &types.NotFound{}, notFound: true},
		{name: "no such key", err: fmt.Errorf("wrapped: %w", &types.NoSuchKey{}), notFound: true},
		{name: "no such bucket", err: &types.NoSuchBucket{}, notFound: true},
		{name: "forbidden", err: responseError(http.StatusForbidden, errors.New("denied")), unavailable: true},
		{name: "throttled", err: responseError(http.StatusServiceUnavailable, errors.New("slow down")), unavailable: true},
		{name: "transport", err: errors.New("connection reset"), unavailable: true},
		{name: "canceled", err: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("head", "c/k", tt.err)
			assert.Equal(t, tt.notFound, IsNotFound(got))
			assert.Equal(t, tt.unavailable, IsUnavailable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify("head", "k", nil))
}

func TestClassifyKeepsTaxonomyErrors(t *testing.T) {
	nf := &NotFoundError{Key: "k"}
	assert.Same(t, nf, Classify("read", "k", nf))
}

func TestClassifyCanceledKeepsContextIdentity(t *testing.T) {
	err := Classify("download", "c/k", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsUnavailable(err))
}

func TestNotFoundErrorMessage(t *testing.T) {
	assert.Equal(t, "object not found", (&NotFoundError{}).Error())
	assert.Equal(t, "c/k: not found", (&NotFoundError{Key: "c/k"}).Error())
}
