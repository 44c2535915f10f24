package objstore

import "strings"

// Registry caches one FS instance per URI scheme so resolving a path never
// allocates a new filesystem handle per request (§4.2).
type Registry struct {
	local *LocalFS
	gcs   *GCSFS
}

// NewRegistry wires the local filesystem always, and GCS only if gcs is
// non-nil (the gs:// scheme is optional — configured only when a GCS client
// was constructed at startup).
func NewRegistry(gcs *GCSFS) *Registry {
	return &Registry{local: NewLocalFS(), gcs: gcs}
}

// Resolve returns the FS responsible for path's scheme.
func (r *Registry) Resolve(path string) FS {
	if strings.HasPrefix(path, "gs://") && r.gcs != nil {
		return r.gcs
	}
	return r.local
}
