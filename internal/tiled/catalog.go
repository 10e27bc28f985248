package tiled

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// MapFile is the file name of a map inside its directory.
const MapFile = "map.json"

// Catalog holds every map found under a maps directory, keyed by the name
// of the directory containing it.
type Catalog struct {
	dir  string
	maps map[string]*Map
}

// LoadCatalog loads dir/<name>/map.json for every subdirectory of dir.
// Directories without a map file are skipped.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read maps dir: %w", err)
	}

	c := &Catalog{dir: dir, maps: make(map[string]*Map)}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), MapFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		c.maps[e.Name()] = m
	}
	return c, nil
}

// Get returns a loaded map.
func (c *Catalog) Get(name string) (*Map, bool) {
	m, ok := c.maps[name]
	return m, ok
}

// Names returns the sorted map names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.maps))
	for name := range c.maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dir returns the directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// MapURL returns the public URL of a map file.
func MapURL(name string) string {
	return "/maps/" + name + "/" + MapFile
}
