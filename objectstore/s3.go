package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3Store struct {
	awsSession *session.Session
	client     *s3.S3
	uploader   *s3manager.Uploader

	bucket    string
	publicURL string
}

// NewS3Store returns a store writing into bucket. Objects are addressed by
// publicURL when given, otherwise by the virtual-hosted bucket endpoint.
func NewS3Store(awsSession *session.Session, bucket, publicURL string) *S3Store {
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}

	return &S3Store{
		awsSession: awsSession,
		client:     s3.New(awsSession),
		uploader:   s3manager.NewUploader(awsSession),
		bucket:     bucket,
		publicURL:  publicURL,
	}
}

func (s *S3Store) Put(ctx context.Context, path string, body io.ReadSeeker, contentType string) error {
	input := &s3manager.UploadInput{
		Body:     body,
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(path),
		Metadata: map[string]*string{},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := s.uploader.UploadWithContext(ctx, input)
	return err
}

func (s *S3Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}

	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *S3Store) StatImage(ctx context.Context, path string) (ImageInfo, error) {
	return statImage(ctx, s, path)
}

func (s *S3Store) URL(path string) string {
	return joinURL(s.publicURL, path)
}

func (s *S3Store) PathOf(url string) (string, bool) {
	return trimURL(s.publicURL, url)
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
