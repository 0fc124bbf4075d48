// Package files implements core.FileStorage on the local disk, Backblaze B2 and S3.
package files

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

const maxNameLen = 100

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	newKeyID = func() string { return uuid.New().String() } // mockable
)

// New returns the storage backend selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case core.FileBackendLocal, "":
		return NewLocal(conf.Storage.LocalRoot), nil
	case core.FileBackendB2:
		return NewB2(ctx, conf.Storage.B2AccountID, conf.Storage.B2AppKey, conf.Storage.Bucket)
	case core.FileBackendS3:
		return NewS3(conf.Storage)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}

// SanitizeName keeps the base name of a client supplied file name and replaces unsafe characters.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	return name
}

// objectKey builds `<kind>/<ownerID>/<uuid>_<name>`.
func objectKey(kind, ownerID, name string) (string, error) {
	switch kind {
	case core.FileKindMaterial, core.FileKindAssignment, core.FileKindSubmission:
	default:
		return "", errors.Errorf("unknown file kind %q", kind)
	}
	if ownerID == "" || strings.ContainsAny(ownerID, `/\.`) {
		return "", errors.Errorf("invalid owner id %q", ownerID)
	}
	return path.Join(kind, ownerID, newKeyID()+"_"+SanitizeName(name)), nil
}

// checkKey rejects paths that were not produced by objectKey.
func checkKey(key string) error {
	if key == "" || path.IsAbs(key) || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return core.NewNotFoundError("file not found")
	}
	return nil
}
