// Package rules loads the YAML rules manifest: the per-message constraint
// tables the validation engine interprets.
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestNames are the file names FindManifest looks for, in order.
var ManifestNames = []string{"protoguard.yaml", "protoguard.yml", ".protoguard.yaml", ".protoguard.yml"}

// ErrManifestNotFound is returned by FindManifest when no manifest exists.
var ErrManifestNotFound = errors.New("rules manifest not found")

// Manifest is the rules file.
type Manifest struct {
	Version  string                 `yaml:"version"`
	Defaults Defaults               `yaml:"defaults,omitempty"`
	Proto    ProtoSources           `yaml:"proto,omitempty"`
	Messages map[string]MessageSpec `yaml:"messages"`

	// dir is the directory the manifest was loaded from.
	dir string
}

// Defaults apply to every message unless overridden.
type Defaults struct {
	Delegation string `yaml:"delegation,omitempty"`
	Mode       string `yaml:"mode,omitempty"`
}

// ProtoSources names the schema the manifest is written against. Relative
// import paths are resolved against the manifest's directory.
type ProtoSources struct {
	ImportPaths []string `yaml:"import_paths,omitempty"`
	Files       []string `yaml:"files,omitempty"`
}

// MessageSpec holds the rules of one message type.
type MessageSpec struct {
	Delegation string               `yaml:"delegation,omitempty"`
	Fields     map[string]FieldSpec `yaml:"fields"`
}

// FieldSpec holds the constraints of one field.
type FieldSpec struct {
	Required   bool   `yaml:"required,omitempty"`
	GT         *Bound `yaml:"gt,omitempty"`
	GTE        *Bound `yaml:"gte,omitempty"`
	LT         *Bound `yaml:"lt,omitempty"`
	LTE        *Bound `yaml:"lte,omitempty"`
	MinLen     *int   `yaml:"min_len,omitempty"`
	MaxLen     *int   `yaml:"max_len,omitempty"`
	Pattern    string `yaml:"pattern,omitempty"`
	Format     string `yaml:"format,omitempty"`
	Delegation string `yaml:"delegation,omitempty"`
}

// Bound keeps a numeric bound as written so it can be parsed without loss
// once the field's kind is known.
type Bound struct {
	Raw string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: bound must be a scalar", value.Line)
	}
	b.Raw = value.Value
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b Bound) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: b.Raw}, nil
}

// Parse decodes a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse rules manifest: %w", err)
	}
	if m.Version != "" && m.Version != "v1" {
		return nil, fmt.Errorf("unsupported rules manifest version %q", m.Version)
	}
	if m.Messages == nil {
		m.Messages = make(map[string]MessageSpec)
	}
	return &m, nil
}

// LoadManifest loads a manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// FindManifest returns the path of the manifest in dir.
func FindManifest(dir string) (string, error) {
	for _, name := range ManifestNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrManifestNotFound, dir)
}

// LoadManifestFromDir loads the manifest found in dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	path, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	return LoadManifest(path)
}

// ImportPaths returns the proto import paths resolved against the manifest
// directory. A manifest without import paths uses its own directory.
func (m *Manifest) ImportPaths() []string {
	base := m.dir
	if base == "" {
		base = "."
	}
	if len(m.Proto.ImportPaths) == 0 {
		return []string{base}
	}

	paths := make([]string, len(m.Proto.ImportPaths))
	for i, p := range m.Proto.ImportPaths {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(base, p)
		}
	}
	return paths
}

// Dir returns the directory the manifest was loaded from, or "" for a
// parsed manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
