package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content/catalog.yaml
var defaultCatalogYAML []byte

// file is the on-disk shape of a catalog document.
type file struct {
	Species []Species   `yaml:"species"`
	Traps   []TrapType  `yaml:"traps"`
	Levels  []LevelTier `yaml:"levels"`
}

// LoadFromBytes parses and validates a catalog from raw YAML.
//
// Postcondition: Returns a validated Catalog or an error.
func LoadFromBytes(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	return New(f.Species, f.Traps, f.Levels)
}

// LoadDir merges every *.yaml file in dir into one catalog. Files are read in
// directory order; later files may add species, traps, or level rows.
//
// Precondition: dir must be a readable directory.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %q: %w", dir, err)
	}
	var merged file
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		merged.Species = append(merged.Species, f.Species...)
		merged.Traps = append(merged.Traps, f.Traps...)
		merged.Levels = append(merged.Levels, f.Levels...)
	}
	return New(merged.Species, merged.Traps, merged.Levels)
}

// Default returns the built-in catalog.
//
// Postcondition: Panics only if the embedded document is invalid.
func Default() *Catalog {
	c, err := LoadFromBytes(defaultCatalogYAML)
	if err != nil {
		panic("catalog: embedded default catalog is invalid: " + err.Error())
	}
	return c
}
