package files

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

type s3Storage struct {
	bucket   string
	client   *s3.S3
	uploader *s3manager.Uploader
}

var _ core.FileStorage = (*s3Storage)(nil)

// NewS3 stores files in an S3 (or S3 compatible, when S3Endpoint is set) bucket.
func NewS3(conf core.StorageConfig) (core.FileStorage, error) {
	awsConf := aws.NewConfig().WithRegion(conf.S3Region)
	if conf.S3Endpoint != "" {
		awsConf = awsConf.WithEndpoint(conf.S3Endpoint).WithS3ForcePathStyle(true)
	}
	if conf.S3AccessKey != "" {
		awsConf = awsConf.WithCredentials(credentials.NewStaticCredentials(conf.S3AccessKey, conf.S3SecretKey, ""))
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, core.NewStorageError(err, "creating aws session")
	}
	return &s3Storage{
		bucket:   conf.Bucket,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func isS3NotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func (s *s3Storage) Store(ctx context.Context, kind, ownerID string, upload core.Upload) (string, error) {
	key, err := objectKey(kind, ownerID, upload.Name)
	if err != nil {
		return "", err
	}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   upload.Content,
	})
	if err != nil {
		return "", core.NewStorageError(err, "uploading s3 object")
	}
	return key, nil
}

func (s *s3Storage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, core.NewNotFoundError("file not found")
		}
		return nil, core.NewStorageError(err, "getting s3 object")
	}
	return out.Body, nil
}

func (s *s3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, nil
	}
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, core.NewStorageError(err, "checking s3 object")
	}
	return true, nil
}

// Delete is idempotent on S3: deleting a missing key succeeds.
func (s *s3Storage) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return core.NewStorageError(err, "deleting s3 object")
	}
	return nil
}
