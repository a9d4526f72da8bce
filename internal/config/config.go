// Package config reads adapt.yaml, the declaration of the types an
// application adapts and the adapter requests it wants synthesized.
//
// A minimal file:
//
//	types:
//	  - name: Task
//	    package: example.com/work
//	    methods:
//	      - name: Run
//	        result: string
//	        abstract: true
//	adapters:
//	  - name: task
//	    base: Task
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/adapt/internal/typemodel"
	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name.
const FileName = "adapt.yaml"

// Config represents the top-level adapt.yaml configuration.
type Config struct {
	// Failures declares the failure kinds methods may list under throws.
	Failures []string `yaml:"failures,omitempty"`

	// Types declares classes and interfaces.
	Types []TypeSpec `yaml:"types,omitempty"`

	// Imports lists Go packages whose named types may be referenced by
	// qualified name ("import/path.Name").
	Imports []ImportSpec `yaml:"imports,omitempty"`

	// Adapters lists the adapter requests.
	Adapters []AdapterSpec `yaml:"adapters"`

	// Store is the path of the SQLite image store, relative to the config
	// file. Empty disables persistence.
	Store string `yaml:"store,omitempty"`
}

// TypeSpec declares a class or an interface.
type TypeSpec struct {
	Name    string `yaml:"name"`
	Package string `yaml:"package,omitempty"`

	// Kind is "class" (default) or "interface".
	Kind string `yaml:"kind,omitempty"`

	Final  bool   `yaml:"final,omitempty"`
	Access string `yaml:"access,omitempty"`

	// Super names the superclass; empty means the universal root.
	Super string `yaml:"super,omitempty"`

	// Implements lists implemented interfaces (classes) or extended
	// interfaces (interfaces).
	Implements []string `yaml:"implements,omitempty"`

	Methods      []MethodSpec `yaml:"methods,omitempty"`
	Constructors []CtorSpec   `yaml:"constructors,omitempty"`
}

// MethodSpec declares a method.
type MethodSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params,omitempty"`
	Result string   `yaml:"result,omitempty"`
	Access string   `yaml:"access,omitempty"`

	Abstract        bool `yaml:"abstract,omitempty"`
	Final           bool `yaml:"final,omitempty"`
	Static          bool `yaml:"static,omitempty"`
	CallerSensitive bool `yaml:"caller_sensitive,omitempty"`

	// Throws lists declared failure kinds by name.
	Throws []string `yaml:"throws,omitempty"`
	// AnyFailure declares every failure kind.
	AnyFailure bool `yaml:"any_failure,omitempty"`

	// Value is returned by the base implementation of a concrete method.
	// Without it the method has no base implementation.
	Value any `yaml:"value,omitempty"`
}

// CtorSpec declares a constructor.
type CtorSpec struct {
	Params []string `yaml:"params,omitempty"`
	Access string   `yaml:"access,omitempty"`
}

// ImportSpec names Go packages to load with go/packages.
type ImportSpec struct {
	// Dir is the directory to load from, relative to the config file.
	Dir      string   `yaml:"dir,omitempty"`
	Patterns []string `yaml:"patterns"`
}

// AdapterSpec is one adapter request.
type AdapterSpec struct {
	Name       string   `yaml:"name"`
	Base       string   `yaml:"base,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	// Mode is "instance" (default) or "class".
	Mode string `yaml:"mode,omitempty"`
}

// LoadConfig reads and parses an adapt.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses adapt.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for adapt.yaml starting from dir and walking up to
// parent directories. It returns "" and a nil error when none is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range []string{FileName, "adapt.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if len(c.Adapters) == 0 {
		return fmt.Errorf("%s: no adapters defined", path)
	}

	failures := make(map[string]bool)
	for i, f := range c.Failures {
		if f == "" {
			return fmt.Errorf("%s: failures[%d]: empty name", path, i)
		}
		if failures[f] {
			return fmt.Errorf("%s: failures[%d]: duplicate failure %q", path, i, f)
		}
		failures[f] = true
	}

	types := make(map[string]bool)
	for i, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("%s: types[%d]: name is required", path, i)
		}
		if types[t.Name] {
			return fmt.Errorf("%s: types[%d]: duplicate type %q", path, i, t.Name)
		}
		types[t.Name] = true

		switch t.Kind {
		case "", "class":
		case "interface":
			if t.Super != "" {
				return fmt.Errorf("%s: types[%d] (%s): interfaces cannot have super", path, i, t.Name)
			}
			if len(t.Constructors) > 0 {
				return fmt.Errorf("%s: types[%d] (%s): interfaces cannot have constructors", path, i, t.Name)
			}
		default:
			return fmt.Errorf("%s: types[%d] (%s): unknown kind %q", path, i, t.Name, t.Kind)
		}
		if _, err := parseAccess(t.Access); err != nil {
			return fmt.Errorf("%s: types[%d] (%s): %w", path, i, t.Name, err)
		}

		for j, m := range t.Methods {
			if m.Name == "" {
				return fmt.Errorf("%s: types[%d].methods[%d] (%s): name is required", path, i, j, t.Name)
			}
			if m.Abstract && (m.Final || m.Static) {
				return fmt.Errorf("%s: types[%d].methods[%d] (%s.%s): abstract methods cannot be final or static",
					path, i, j, t.Name, m.Name)
			}
			if m.Abstract && m.Value != nil {
				return fmt.Errorf("%s: types[%d].methods[%d] (%s.%s): abstract methods cannot have a value",
					path, i, j, t.Name, m.Name)
			}
			if _, err := parseAccess(m.Access); err != nil {
				return fmt.Errorf("%s: types[%d].methods[%d] (%s.%s): %w", path, i, j, t.Name, m.Name, err)
			}
			for _, f := range m.Throws {
				if !failures[f] {
					return fmt.Errorf("%s: types[%d].methods[%d] (%s.%s): undeclared failure %q",
						path, i, j, t.Name, m.Name, f)
				}
			}
		}
		for j, ctor := range t.Constructors {
			if _, err := parseAccess(ctor.Access); err != nil {
				return fmt.Errorf("%s: types[%d].constructors[%d] (%s): %w", path, i, j, t.Name, err)
			}
		}
	}

	for i, imp := range c.Imports {
		if len(imp.Patterns) == 0 {
			return fmt.Errorf("%s: imports[%d]: patterns is required", path, i)
		}
	}

	names := make(map[string]bool)
	for i, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("%s: adapters[%d]: name is required", path, i)
		}
		if names[a.Name] {
			return fmt.Errorf("%s: adapters[%d]: duplicate adapter %q", path, i, a.Name)
		}
		names[a.Name] = true
		if a.Base == "" && len(a.Interfaces) == 0 {
			return fmt.Errorf("%s: adapters[%d] (%s): base or interfaces is required", path, i, a.Name)
		}
		if _, err := typemodel.ParseMode(a.Mode); err != nil {
			return fmt.Errorf("%s: adapters[%d] (%s): %w", path, i, a.Name, err)
		}
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	for i := range c.Types {
		t := &c.Types[i]
		if t.Kind == "" {
			t.Kind = "class"
		}
		if t.Kind == "class" && len(t.Constructors) == 0 {
			t.Constructors = []CtorSpec{{}}
		}
		for j := range t.Methods {
			if t.Methods[j].Result == "" {
				t.Methods[j].Result = "void"
			}
		}
	}
	for i := range c.Adapters {
		if c.Adapters[i].Mode == "" {
			c.Adapters[i].Mode = "instance"
		}
	}
}

// IsInterface reports whether the spec declares an interface.
func (t *TypeSpec) IsInterface() bool { return t.Kind == "interface" }

// QualifiedName is "package.Name", or Name without a package.
func (t *TypeSpec) QualifiedName() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

func parseAccess(s string) (typemodel.Access, error) {
	switch strings.ToLower(s) {
	case "", "public":
		return typemodel.Public, nil
	case "protected":
		return typemodel.Protected, nil
	case "package":
		return typemodel.Package, nil
	case "private":
		return typemodel.Private, nil
	}
	return 0, fmt.Errorf("unknown access %q", s)
}
