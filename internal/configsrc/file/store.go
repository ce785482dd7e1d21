// Package file implements a container.Loader/Saver backed by one YAML
// file per named entry on disk, grounded on the teacher's preference for
// gopkg.in/yaml.v3 as the on-disk configuration format. uri is used as the containing
// directory; each entry is uri/<name>.yaml.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store reads and writes YAML-document configuration text files rooted
// at a directory supplied as the Loader/Saver uri argument.
type Store struct {
	// Ext overrides the default ".yaml" file extension. Empty uses the
	// default.
	Ext string
}

// New returns a Store using the default ".yaml" extension.
func New() *Store { return &Store{} }

func (s *Store) ext() string {
	if s.Ext == "" {
		return ".yaml"
	}
	return s.Ext
}

func (s *Store) path(dir, name string) string {
	return filepath.Join(dir, name+s.ext())
}

// Load implements container.Loader. uri is the directory containing one
// file per entry name.
func (s *Store) Load(_ context.Context, name, uri string) (string, bool, error) {
	b, err := os.ReadFile(s.path(uri, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("configsrc/file: load %s: %w", name, err)
	}
	return string(b), true, nil
}

// Save implements container.Saver, creating uri if it does not exist.
func (s *Store) Save(_ context.Context, name, uri, text string) error {
	if err := os.MkdirAll(uri, 0o755); err != nil {
		return fmt.Errorf("configsrc/file: save %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(uri, name), []byte(text), 0o644); err != nil {
		return fmt.Errorf("configsrc/file: save %s: %w", name, err)
	}
	return nil
}
