package plugin

import (
	"os"
	"path/filepath"
)

// readPluginDir lists the immediate children of dir that are not
// directories, each joined onto dir. A
// missing directory is not an error: plugins are optional (§4.14).
func readPluginDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
