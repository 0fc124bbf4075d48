package files

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

type b2Storage struct {
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Storage)(nil)

// NewB2 stores files in a Backblaze B2 bucket.
func NewB2(ctx context.Context, accountID, appKey, bucketName string) (core.FileStorage, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, core.NewStorageError(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, core.NewStorageError(err, "getting b2 bucket")
	}
	return &b2Storage{bucket: bucket}, nil
}

func (s *b2Storage) Store(ctx context.Context, kind, ownerID string, upload core.Upload) (string, error) {
	key, err := objectKey(kind, ownerID, upload.Name)
	if err != nil {
		return "", err
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err = io.Copy(w, upload.Content); err != nil {
		_ = w.Close()
		return "", core.NewStorageError(err, "writing b2 object")
	}
	if err = w.Close(); err != nil {
		return "", core.NewStorageError(err, "closing b2 writer")
	}
	return key, nil
}

func (s *b2Storage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.NewNotFoundError("file not found")
		}
		return nil, core.NewStorageError(err, "reading b2 object attrs")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, nil
	}
	if _, err := s.bucket.Object(key).Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return false, nil
		}
		return false, core.NewStorageError(err, "reading b2 object attrs")
	}
	return true, nil
}

func (s *b2Storage) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return core.NewNotFoundError("file not found")
		}
		return core.NewStorageError(err, "deleting b2 object")
	}
	return nil
}
