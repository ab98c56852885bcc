// Package storage provides object storage for CIF documents. Documents are
// kept as whole objects, optionally compressed, in a local directory tree or
// an S3 bucket.
package storage

import (
	"context"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// ErrObjectNotFound is returned when a key does not name an object. Callers
// match it with errors.Is.
var ErrObjectNotFound = cerrors.NewStorageError(cerrors.CodeObjectNotFound, "object not found", nil)

// ObjectStorage abstracts the storage of document objects.
type ObjectStorage interface {
	// Upload copies the local file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies the object at objectPath to localPath, creating parent
	// directories as needed.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

func uploadError(objectPath string, cause error) error {
	return cerrors.NewStorageError(cerrors.CodeUploadFailed, "failed to upload "+objectPath, cause)
}

func downloadError(objectPath string, cause error) error {
	return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "failed to download "+objectPath, cause)
}

func notFound(objectPath string) error {
	return ErrObjectNotFound.WithDetails(map[string]interface{}{"object": objectPath})
}
