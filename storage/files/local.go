package files

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

type localStorage struct {
	fs afero.Fs
}

var _ core.FileStorage = (*localStorage)(nil)

// NewLocal stores files under root on the local disk.
func NewLocal(root string) core.FileStorage {
	return NewAfero(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewAfero stores files on any afero filesystem (eg: afero.NewMemMapFs() in tests).
func NewAfero(fs afero.Fs) core.FileStorage {
	return &localStorage{fs: fs}
}

func (s *localStorage) Store(_ context.Context, kind, ownerID string, upload core.Upload) (string, error) {
	key, err := objectKey(kind, ownerID, upload.Name)
	if err != nil {
		return "", err
	}
	if err = s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return "", core.NewStorageError(err, "creating directory")
	}
	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", core.NewStorageError(err, "creating file")
	}
	if _, err = io.Copy(f, upload.Content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(key)
		return "", core.NewStorageError(err, "writing file")
	}
	if err = f.Close(); err != nil {
		_ = s.fs.Remove(key)
		return "", core.NewStorageError(err, "closing file")
	}
	return key, nil
}

func (s *localStorage) Retrieve(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file not found")
		}
		return nil, core.NewStorageError(err, "opening file")
	}
	return f, nil
}

func (s *localStorage) Exists(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, nil
	}
	ok, err := afero.Exists(s.fs, key)
	if err != nil {
		return false, core.NewStorageError(err, "checking file")
	}
	return ok, nil
}

func (s *localStorage) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil {
		if os.IsNotExist(err) {
			return core.NewNotFoundError("file not found")
		}
		return errors.Wrap(core.NewStorageError(err, "removing file"), key)
	}
	return nil
}
