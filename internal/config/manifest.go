package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyManifest is returned when the manifest lists no tables.
var ErrEmptyManifest = errors.New("manifest lists no tables")

// TableSpec names one table to export and the columns to select, in order.
type TableSpec struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

// Manifest is the declarative export plan read from the tables file.
type Manifest struct {
	Tables            []TableSpec `yaml:"tables"`
	DestinationPrefix string      `yaml:"destination_prefix"`
}

// LoadManifest reads and validates the YAML manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes a manifest document. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyManifest
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for i := range m.Tables {
		m.Tables[i].Name = strings.TrimSpace(m.Tables[i].Name)
		for j := range m.Tables[i].Columns {
			m.Tables[i].Columns[j] = strings.TrimSpace(m.Tables[i].Columns[j])
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every table has a unique name and at least one column.
// Identifiers are interpolated into SQL verbatim, so the manifest must come
// from a trusted source; the character checks here only catch typos.
func (m *Manifest) Validate() error {
	if len(m.Tables) == 0 {
		return ErrEmptyManifest
	}

	var errs []string
	seen := make(map[string]bool, len(m.Tables))
	for i, t := range m.Tables {
		name := t.Name
		switch {
		case name == "":
			errs = append(errs, fmt.Sprintf("tables[%d]: name is required", i))
			continue
		case !plainIdentifier(name):
			errs = append(errs, fmt.Sprintf("tables[%d]: name %q contains forbidden characters", i, name))
		case seen[name]:
			errs = append(errs, fmt.Sprintf("tables[%d]: duplicate table %q", i, name))
		}
		seen[name] = true

		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("table %s: columns must not be empty", name))
		}
		for j, col := range t.Columns {
			if col == "" {
				errs = append(errs, fmt.Sprintf("table %s: columns[%d] is empty", name, j))
			} else if !plainIdentifier(col) {
				errs = append(errs, fmt.Sprintf("table %s: column %q contains forbidden characters", name, col))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func plainIdentifier(s string) bool {
	return !strings.ContainsAny(s, ";\x00")
}
