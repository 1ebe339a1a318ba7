package normalize

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"asmlsp/internal/schema"
)

// ManifestEntry is one raw source listed in a manifest.
type ManifestEntry struct {
	Path      string `yaml:"path"`
	Kind      string `yaml:"kind"`
	Format    string `yaml:"format,omitempty"`
	Arch      string `yaml:"arch,omitempty"`
	Assembler string `yaml:"assembler,omitempty"`
}

// Manifest lists the raw sources of a batch normalize run. Relative paths are
// resolved against the manifest's directory.
type Manifest struct {
	Sources []ManifestEntry `yaml:"sources"`

	dir string
}

// LoadManifest reads a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// ToSources converts the manifest entries into normalizer sources.
func (m *Manifest) ToSources() ([]Source, error) {
	out := make([]Source, 0, len(m.Sources))
	for i, e := range m.Sources {
		src, err := e.toSource(m.dir)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i+1, e.Path, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func (e ManifestEntry) toSource(dir string) (Source, error) {
	if e.Path == "" {
		return Source{}, fmt.Errorf("missing path")
	}
	kind, err := schema.ParseDocKind(e.Kind)
	if err != nil {
		return Source{}, err
	}
	src := Source{Path: e.Path, Kind: kind}
	if !filepath.IsAbs(src.Path) && dir != "" {
		src.Path = filepath.Join(dir, src.Path)
	}
	if e.Format != "" {
		if src.Format, err = ParseFormat(e.Format); err != nil {
			return Source{}, err
		}
	}
	if e.Arch != "" {
		if src.Arch, err = schema.ParseArchitecture(e.Arch); err != nil {
			return Source{}, err
		}
	}
	if e.Assembler != "" {
		if src.Assembler, err = schema.ParseAssembler(e.Assembler); err != nil {
			return Source{}, err
		}
	}
	return src, nil
}
