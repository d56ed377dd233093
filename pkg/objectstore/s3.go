package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// API is the subset of *s3.Client used by S3Store.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store implements ObjectStore on top of an S3-compatible API using
// path-style addressing: <endpoint><bucket>/<key>.
type S3Store struct {
	client   API
	endpoint string
}

// NewS3Store binds client to the provided base endpoint. The endpoint is
// normalized to end with a slash.
func NewS3Store(client API, endpoint string) *S3Store {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &S3Store{
		client:   client,
		endpoint: endpoint,
	}
}

// BaseEndpoint returns the slash-terminated endpoint of the store.
func (s *S3Store) BaseEndpoint() string {
	return s.endpoint
}

// split turns an absolute object URL into its bucket and key.
func (s *S3Store) split(objectURL string) (string, string, error) {
	if !strings.HasPrefix(objectURL, s.endpoint) {
		return "", "", fmt.Errorf("object url %s outside of %s", objectURL, s.endpoint)
	}
	rel := strings.TrimPrefix(objectURL, s.endpoint)
	bucket, key, _ := strings.Cut(rel, "/")
	if bucket == "" || key == "" {
		return "", "", &NotFoundError{Key: rel}
	}
	return bucket, key, nil
}

// Lookup returns the attributes of the object by issuing an S3 HEAD request.
func (s *S3Store) Lookup(ctx context.Context, objectURL string) (Blob, error) {
	bucket, key, err := s.split(objectURL)
	if err != nil {
		return Blob{}, err
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Blob{}, Classify("head", bucket+"/"+key, err)
	}
	return Blob{
		URL:          objectURL,
		Bucket:       bucket,
		Key:          key,
		Size:         aws.ToInt64(head.ContentLength),
		ETag:         aws.ToString(head.ETag),
		ContentType:  aws.ToString(head.ContentType),
		LastModified: aws.ToTime(head.LastModified),
	}, nil
}

// Download copies the object body into dst.
func (s *S3Store) Download(ctx context.Context, blob Blob, dst io.Writer) (int64, error) {
	name := blob.Bucket + "/" + blob.Key
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(blob.Bucket),
		Key:    aws.String(blob.Key),
	})
	if err != nil {
		return 0, Classify("download", name, err)
	}
	defer obj.Body.Close()
	n, err := io.Copy(dst, obj.Body)
	if err != nil {
		return n, Classify("read", name, err)
	}
	return n, nil
}
