// Package exportset reads project files describing a resolved export set:
// the libraries a project depends on, their classified assets and the
// framework and runtime they were resolved for.
//
// Project files may be YAML (.yaml, .yml) or JSON with comments (.json,
// .jsonc).
package exportset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// File is the raw project file schema.
type File struct {
	Framework               string        `yaml:"framework" json:"framework"`
	Runtime                 string        `yaml:"runtime" json:"runtime"`
	ReferenceAssembliesRoot string        `yaml:"referenceAssembliesRoot" json:"referenceAssembliesRoot"`
	CompilationOptions      OptionsSpec   `yaml:"compilationOptions" json:"compilationOptions"`
	Libraries               []LibrarySpec `yaml:"libraries" json:"libraries"`
}

type OptionsSpec struct {
	Defines          []string `yaml:"defines" json:"defines"`
	LanguageVersion  string   `yaml:"languageVersion" json:"languageVersion"`
	Platform         string   `yaml:"platform" json:"platform"`
	AllowUnsafe      bool     `yaml:"allowUnsafe" json:"allowUnsafe"`
	WarningsAsErrors bool     `yaml:"warningsAsErrors" json:"warningsAsErrors"`
	Optimize         bool     `yaml:"optimize" json:"optimize"`
	KeyFile          string   `yaml:"keyFile" json:"keyFile"`
	DelaySign        bool     `yaml:"delaySign" json:"delaySign"`
	PublicSign       bool     `yaml:"publicSign" json:"publicSign"`
	EmitEntryPoint   bool     `yaml:"emitEntryPoint" json:"emitEntryPoint"`
	XmlDoc           bool     `yaml:"xmlDoc" json:"xmlDoc"`
}

type LibrarySpec struct {
	Name           string              `yaml:"name" json:"name"`
	Version        string              `yaml:"version" json:"version"`
	Type           string              `yaml:"type" json:"type"`
	Hash           string              `yaml:"hash" json:"hash"`
	Serviceable    bool                `yaml:"serviceable" json:"serviceable"`
	Path           string              `yaml:"path" json:"path"`
	Scope          string              `yaml:"scope" json:"scope"`
	Dependencies   []DependencySpec    `yaml:"dependencies" json:"dependencies"`
	Compile        []string            `yaml:"compile" json:"compile"`
	Runtime        []string            `yaml:"runtime" json:"runtime"`
	RuntimeTargets []RuntimeTargetSpec `yaml:"runtimeTargets" json:"runtimeTargets"`
	Resources      []ResourceSpec      `yaml:"resources" json:"resources"`
}

type DependencySpec struct {
	Name  string `yaml:"name" json:"name"`
	Range string `yaml:"range" json:"range"`
	// Type is the edge type: default, build, platform or preprocess.
	Type string `yaml:"type" json:"type"`
	// Kind is the library type the edge expects.
	Kind string `yaml:"kind" json:"kind"`
}

type RuntimeTargetSpec struct {
	Runtime    string   `yaml:"runtime" json:"runtime"`
	Assemblies []string `yaml:"assemblies" json:"assemblies"`
	Native     []string `yaml:"native" json:"native"`
}

type ResourceSpec struct {
	Path   string `yaml:"path" json:"path"`
	Locale string `yaml:"locale" json:"locale"`
}

// Load reads and validates a project file. When the file parses but has
// validation problems, the project is still returned alongside a
// ValidationErrors value.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("project file is empty")
	}

	file, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	project, err := file.Project()
	if project != nil {
		project.Path = path
	}
	return project, err
}

// Parse decodes project file contents. ext selects the syntax and includes
// the leading dot.
func Parse(data []byte, ext string) (File, error) {
	var file File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return File{}, fmt.Errorf("parse YAML: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return File{}, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return File{}, fmt.Errorf("unsupported project file extension %q", ext)
	}
	return file, nil
}
