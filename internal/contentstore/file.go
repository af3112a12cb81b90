package contentstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/contentdex/contentdex/internal/domain/content"
)

// fileExport is the on-disk shape of a content export: objects grouped by site.
type fileExport struct {
	Sites []struct {
		Site    int              `json:"site"`
		Objects []content.Object `json:"objects"`
	} `json:"sites"`
}

// LoadFile reads a JSON content export into a memory store.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content export: %w", err)
	}

	var export fileExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse content export %s: %w", path, err)
	}

	store := NewMemory()
	for _, s := range export.Sites {
		site := s.Site
		if site < 1 {
			site = 1
		}
		store.Add(site, s.Objects...)
	}
	return store, nil
}
