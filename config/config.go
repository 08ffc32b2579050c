// Package config holds the target policy that drives export validation and
// loads it from rsexport.yaml files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// API levels with export-relevant behaviour changes.
const (
	MinimumTargetAPI = 11
	// APIIceCreamSandwich is the first level that exports 3-element vectors
	// nested in structs and arrays.
	APIIceCreamSandwich = 14
	// APIJellyBean is the first level that exports object types nested in
	// structs and arrays.
	APIJellyBean     = 16
	MaximumTargetAPI = 24
)

// Dialect selects the language profile.
type Dialect string

const (
	// DialectFull is the complete kernel language.
	DialectFull Dialect = "full"
	// DialectRestricted forbids pointers and scalars wider than 32 bits.
	DialectRestricted Dialect = "restricted"
)

// Target is the policy a compilation validates against.
type Target struct {
	// PointerWidth is 32 or 64. It selects object sizes and ABI padding.
	PointerWidth int     `json:"pointerWidth"`
	TargetAPI    int     `json:"targetAPI"`
	Dialect      Dialect `json:"dialect"`
}

// Default returns a 32-bit, full-dialect target at the highest API level.
func Default() Target {
	return Target{
		PointerWidth: 32,
		TargetAPI:    MaximumTargetAPI,
		Dialect:      DialectFull,
	}
}

// Is64Bit reports whether pointers are 64 bits wide.
func (t Target) Is64Bit() bool { return t.PointerWidth == 64 }

// IsRestricted reports whether the restricted dialect is active.
func (t Target) IsRestricted() bool { return t.Dialect == DialectRestricted }

// PointerSize is the pointer width in bytes.
func (t Target) PointerSize() int { return t.PointerWidth / 8 }

// Validate checks that t is a supported combination.
func (t Target) Validate() error {
	if t.PointerWidth != 32 && t.PointerWidth != 64 {
		return errors.Errorf("unsupported pointer width %d, want 32 or 64", t.PointerWidth)
	}
	if t.TargetAPI < MinimumTargetAPI || t.TargetAPI > MaximumTargetAPI {
		return errors.Errorf("target API %d is outside [%d, %d]", t.TargetAPI, MinimumTargetAPI, MaximumTargetAPI)
	}
	switch t.Dialect {
	case DialectFull, DialectRestricted:
	default:
		return errors.Errorf("unknown dialect '%v'", t.Dialect)
	}
	return nil
}

// ParseDialect accepts the dialect names used on the command line and in
// query strings. The empty string selects the full dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", string(DialectFull), "rs", "renderscript":
		return DialectFull, nil
	case string(DialectRestricted), "fs", "filterscript":
		return DialectRestricted, nil
	}
	return "", errors.Errorf("unknown dialect '%v'", s)
}

// File is the configuration file structure.
// All fields are optional; unset fields keep their defaults.
type File struct {
	PointerWidth *int    `json:"pointerWidth,omitempty"`
	TargetAPI    *int    `json:"targetAPI,omitempty"`
	Dialect      *string `json:"dialect,omitempty"`

	// Output controls what rsexportgen writes next to the sources.
	Output struct {
		// Schema is the document format: yaml (default), json or none.
		Schema string `json:"schema,omitempty"`
		// Bindings is the output directory, relative to the config file.
		Bindings string `json:"bindings,omitempty"`
		Package  string `json:"package,omitempty"`
	} `json:"output,omitempty"`
}

// FileNames are the names searched for config files, in order of preference.
var FileNames = []string{
	"rsexport.yaml",
	".rsexportrc",
	".rsexportrc.yaml",
}

// Load searches for a config file starting from dir and walking up to the
// root. It returns nil and an empty path if no file is found.
func Load(dir string) (*File, string, error) {
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				f, err := LoadFile(path)
				return f, path, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "when reading config '%v'", path)
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON) configuration.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "when decoding config")
	}
	return &f, nil
}

// Target applies the file over Default.
func (f *File) Target() (Target, error) {
	t := Default()
	if f == nil {
		return t, nil
	}
	if f.PointerWidth != nil {
		t.PointerWidth = *f.PointerWidth
	}
	if f.TargetAPI != nil {
		t.TargetAPI = *f.TargetAPI
	}
	if f.Dialect != nil {
		d, err := ParseDialect(*f.Dialect)
		if err != nil {
			return t, err
		}
		t.Dialect = d
	}
	return t, t.Validate()
}

// Overrides are command-line settings; zero values mean "not given".
type Overrides struct {
	PointerWidth int
	TargetAPI    int
	Dialect      string
}

// Merge applies o over t. Command-line settings win over the file.
func (t Target) Merge(o Overrides) (Target, error) {
	if o.PointerWidth != 0 {
		t.PointerWidth = o.PointerWidth
	}
	if o.TargetAPI != 0 {
		t.TargetAPI = o.TargetAPI
	}
	if o.Dialect != "" {
		d, err := ParseDialect(o.Dialect)
		if err != nil {
			return t, err
		}
		t.Dialect = d
	}
	return t, t.Validate()
}
