// Package objstore is the storage facade (C2): a single interface spanning
// local filesystem and cloud-object URIs ("gs://…"). One FS instance is
// cached per URI scheme; callers never pay per-request allocation for the
// scheme lookup.
package objstore

import (
	"context"
	"io"
)

// DirEntry is one entry returned by ListDirDetail: name, type, size.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// FS is the uniform read/list/exists operation set C2 specifies.
type FS interface {
	Exists(ctx context.Context, path string) (bool, error)
	ReadBytes(ctx context.Context, path string) ([]byte, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	ListDirDetail(ctx context.Context, path string) ([]DirEntry, error)
	IsDir(ctx context.Context, path string) (bool, error)
}

// ResolveImagePath joins base and name using the scheme-appropriate
// separator, per C2's resolve_image_path operation.
func ResolveImagePath(base, name string) string {
	if base == "" {
		return name
	}
	sep := "/"
	if base[len(base)-1] == '/' {
		sep = ""
	}
	return base + sep + name
}
