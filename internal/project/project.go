// Package project defines the project record and the ordered registry
// that maps source files to the project owning them.
package project

import (
	"errors"
	"fmt"

	"github.com/beamline-dev/beamline/internal/pathutil"
)

var (
	// ErrMissingName is returned when a project is configured without a name.
	ErrMissingName = errors.New("project is missing required field: name")
	// ErrMissingRoot is returned when a project is configured without a root.
	ErrMissingRoot = errors.New("project is missing required field: root")
)

// Project is an immutable configuration record binding a root directory and
// library layout to a node identity and an optional custom start command.
type Project struct {
	// Name identifies the project. Required.
	Name string
	// Root is the project root directory. Required.
	Root string
	// LibDirs are library directory names relative to Root. Defaults to ["lib"].
	LibDirs []string
	// NodeName is the short node identity. Defaults to Name.
	NodeName string
	// StartCommand optionally overrides the synthesized launch command.
	StartCommand string
}

// Options holds the raw configured fields for a project before defaults
// are applied. Zero values mean "not configured".
type Options struct {
	Name         string
	Root         string
	LibDirs      []string
	NodeName     string
	StartCommand string
}

// New constructs a Project, validating required fields and applying
// defaults once. The returned record is read-only thereafter.
func New(opts Options) (*Project, error) {
	if opts.Name == "" {
		return nil, ErrMissingName
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("project %q: %w", opts.Name, ErrMissingRoot)
	}

	p := &Project{
		Name:         opts.Name,
		Root:         opts.Root,
		LibDirs:      opts.LibDirs,
		NodeName:     opts.NodeName,
		StartCommand: opts.StartCommand,
	}
	if len(p.LibDirs) == 0 {
		p.LibDirs = []string{"lib"}
	}
	if p.NodeName == "" {
		p.NodeName = p.Name
	}
	return p, nil
}

// CodePaths expands the project's code search paths.
func (p *Project) CodePaths() []string {
	return pathutil.ExpandCodePaths(p.Root, p.LibDirs)
}

// Contains reports whether path lives under the project root.
func (p *Project) Contains(path string) bool {
	return pathutil.IsUnder(p.Root, path)
}
