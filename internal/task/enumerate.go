package task

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"dataset-manager/internal/labels"
	"dataset-manager/internal/mediatypes"
)

// enumerateImages walks the dataset and returns the image files as
// dataset-relative slash paths. WalkDir visits entries in lexical order, so
// the result is deterministic for a given tree. The labels directory and
// hidden directories are skipped.
func enumerateImages(datasetPath string) ([]string, error) {
	var images []string

	err := filepath.WalkDir(datasetPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == datasetPath {
				return nil
			}
			name := d.Name()
			if name == labels.DirName || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !mediatypes.IsImage(path) {
			return nil
		}

		rel, err := filepath.Rel(datasetPath, path)
		if err != nil {
			return err
		}
		images = append(images, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", datasetPath, err)
	}

	return images, nil
}
