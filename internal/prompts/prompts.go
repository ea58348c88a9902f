// Package prompts holds the versioned prompt catalog used by the router and
// the plan generator.
package prompts

import (
	_ "embed"
	"fmt"
	"io/fs"

	lcprompts "github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

// Prompt names in the catalog.
const (
	Router  = "router"
	Planner = "planner"
	Retry   = "retry"
	Refiner = "refiner"
	Coder   = "coder"
)

//go:embed catalog.yaml
var embedded []byte

// Template is one versioned system/user prompt pair.
type Template struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Inputs  []string `yaml:"inputs"`
	System  string   `yaml:"system"`
	User    string   `yaml:"user"`
}

// Catalog indexes templates by name.
type Catalog struct {
	byName map[string]Template
}

type catalogFile struct {
	Prompts []Template `yaml:"prompts"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file from fsys, e.g. to override prompts without a
// rebuild. Entries missing from the file fall back to the embedded ones.
func Load(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt catalog: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base := Default()
	for name, t := range override.byName {
		base.byName[name] = t
	}
	return base, nil
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing prompt catalog: %w", err)
	}
	c := &Catalog{byName: make(map[string]Template, len(f.Prompts))}
	for i, t := range f.Prompts {
		if t.Name == "" {
			return nil, fmt.Errorf("prompts[%d].name is required", i)
		}
		if t.User == "" {
			return nil, fmt.Errorf("prompts[%d] (%s): user template is required", i, t.Name)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("prompts[%d]: duplicate name %q", i, t.Name)
		}
		c.byName[t.Name] = t
	}
	return c, nil
}

// Get returns the named template.
func (c *Catalog) Get(name string) (Template, error) {
	t, ok := c.byName[name]
	if !ok {
		return Template{}, fmt.Errorf("prompt %q not found", name)
	}
	return t, nil
}

// Render fills the named template. Every declared input must be present.
func (c *Catalog) Render(name string, vars map[string]any) (system, user string, err error) {
	t, err := c.Get(name)
	if err != nil {
		return "", "", err
	}
	return t.Render(vars)
}

// Render fills both halves of t.
func (t Template) Render(vars map[string]any) (system, user string, err error) {
	for _, in := range t.Inputs {
		if _, ok := vars[in]; !ok {
			return "", "", fmt.Errorf("prompt %s@%s: missing input %q", t.Name, t.Version, in)
		}
	}
	if t.System != "" {
		system, err = lcprompts.NewPromptTemplate(t.System, t.Inputs).Format(vars)
		if err != nil {
			return "", "", fmt.Errorf("prompt %s@%s system: %w", t.Name, t.Version, err)
		}
	}
	user, err = lcprompts.NewPromptTemplate(t.User, t.Inputs).Format(vars)
	if err != nil {
		return "", "", fmt.Errorf("prompt %s@%s user: %w", t.Name, t.Version, err)
	}
	return system, user, nil
}

// ID is the name@version label recorded in logs.
func (t Template) ID() string {
	return t.Name + "@" + t.Version
}
