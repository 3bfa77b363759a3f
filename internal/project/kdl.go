package project

import (
	"fmt"
	"os"
	"path/filepath"

	kdl "github.com/sblinch/kdl-go"
)

// ConfigFile is the name of the project configuration file.
const ConfigFile = "projects.kdl"

// kdlConfig is the KDL configuration structure. Uses kdl struct tags for
// unmarshaling; one "project" node per configured project, in file order.
type kdlConfig struct {
	Projects []kdlProject `kdl:"project,multiple"`
}

// kdlProject holds the raw fields of a single project node.
type kdlProject struct {
	Name         string   `kdl:"name"`
	Root         string   `kdl:"root"`
	LibDirs      []string `kdl:"lib-dirs"`
	NodeName     string   `kdl:"node-sname"`
	StartCommand string   `kdl:"start-command"`
}

// DefaultConfigPath returns the global configuration file path, honoring
// XDG_CONFIG_HOME with a ~/.config fallback.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "beamline", ConfigFile)
}

// LoadRegistry loads the project registry from the default location. A
// missing file yields an empty registry, not an error.
func LoadRegistry() (*Registry, error) {
	path := DefaultConfigPath()
	if path == "" {
		return NewRegistry(nil), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewRegistry(nil), nil
	}
	return LoadRegistryFile(path)
}

// LoadRegistryFile loads the project registry from a specific file.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ParseConfig parses KDL project configuration data into a registry,
// preserving file order and applying per-project defaults.
func ParseConfig(data []byte) (*Registry, error) {
	var cfg kdlConfig
	if err := kdl.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	projects := make([]*Project, 0, len(cfg.Projects))
	for _, raw := range cfg.Projects {
		p, err := New(Options{
			Name:         raw.Name,
			Root:         raw.Root,
			LibDirs:      raw.LibDirs,
			NodeName:     raw.NodeName,
			StartCommand: raw.StartCommand,
		})
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return NewRegistry(projects), nil
}
