package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"flora-crawler/pkg/utils"
)

// FilePageCache writes each detail page to <dir>/<last path segment of its link>,
// preceded by a "<link>URL</link>" provenance line
type FilePageCache struct {
	dir string
}

// NewFilePageCache creates a cache rooted at dir
func NewFilePageCache(dir string) *FilePageCache {
	return &FilePageCache{dir: dir}
}

// Write implements PageCache. An existing file for the same name is overwritten.
func (c *FilePageCache) Write(link, markup string) (string, error) {
	name, err := utils.LastPathSegment(link)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating page cache directory %s: %w", utils.ErrFilesystem, c.dir, err)
	}

	target := filepath.Join(c.dir, name)
	content := "<link>" + link + "</link>\n" + markup
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, target, err)
	}
	return target, nil
}
