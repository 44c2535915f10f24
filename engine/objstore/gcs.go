package objstore

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSFS implements FS over "gs://bucket/key" URIs using the GCS client
// library, grounded on the corpus's chromium-infra usage of
// cloud.google.com/go/storage for result-file object listing/reads.
type GCSFS struct {
	client *storage.Client
}

// NewGCSFS wraps an already-constructed client (callers own its lifecycle —
// Close() on shutdown alongside the column store, §5 "Shared resources").
func NewGCSFS(client *storage.Client) *GCSFS { return &GCSFS{client: client} }

func splitGSPath(path string) (bucket, key string, err error) {
	const prefix = "gs://"
	if !strings.HasPrefix(path, prefix) {
		return "", "", errors.New("objstore: not a gs:// path: " + path)
	}
	rest := path[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx == -1 {
		return rest, "", nil
	}
	return rest[:idx], rest[idx+1:], nil
}

func (g *GCSFS) Exists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := splitGSPath(path)
	if err != nil {
		return false, err
	}
	_, err = g.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCSFS) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	r, err := g.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GCSFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitGSPath(path)
	if err != nil {
		return nil, err
	}
	return g.client.Bucket(bucket).Object(key).NewReader(ctx)
}

func (g *GCSFS) IsDir(ctx context.Context, path string) (bool, error) {
	// GCS has no real directories; a "directory" exists iff at least one
	// object shares its prefix.
	entries, err := g.ListDirDetail(ctx, path)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (g *GCSFS) ListDirDetail(ctx context.Context, path string) ([]DirEntry, error) {
	bucket, prefix, err := splitGSPath(path)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var out []DirEntry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, err
		}
		if attrs.Prefix != "" {
			out = append(out, DirEntry{Name: strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/"), IsDir: true})
			continue
		}
		out = append(out, DirEntry{Name: strings.TrimPrefix(attrs.Name, prefix), IsDir: false, Size: attrs.Size})
	}
	return out, nil
}
