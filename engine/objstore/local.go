package objstore

import (
	"context"
	"io"
	"os"
)

// LocalFS implements FS over the local filesystem.
type LocalFS struct{}

func NewLocalFS() *LocalFS { return &LocalFS{} }

func (LocalFS) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (LocalFS) ReadBytes(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (LocalFS) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (LocalFS) IsDir(_ context.Context, path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func (LocalFS) ListDirDetail(_ context.Context, path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir(), Size: info.Size()})
	}
	return out, nil
}
