// Package linksign produces short-lived signed download URLs for the
// release files stored in a Backblaze B2 bucket, driven through B2's
// S3-compatible API.
package linksign

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Signer hands out a presigned GET URL for a file key. TTLs are expected
// to be tens of seconds; the URL is the only thing standing between the
// bucket and the public internet.
type Signer interface {
	Sign(ctx context.Context, fileKey string, ttl time.Duration) (string, error)
}

// B2Signer signs URLs against one bucket of an S3-compatible endpoint.
type B2Signer struct {
	client *minio.Client
	bucket string
}

// NewB2Signer connects to the endpoint (host, no scheme) with the given
// application key pair.
func NewB2Signer(endpoint, keyID, applicationKey, bucket string) (*B2Signer, error) {
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(keyID, applicationKey, ""),
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	return &B2Signer{client: c, bucket: bucket}, nil
}

func (s *B2Signer) Sign(ctx context.Context, fileKey string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, ttl, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
