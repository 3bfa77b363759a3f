package project

// Registry holds the ordered set of configured projects. It is constructed
// once from configuration and read-only afterward, so lookups need no
// locking.
type Registry struct {
	projects []*Project
}

// NewRegistry creates a registry over the given projects. Order matters:
// when project roots overlap, the first registered match wins.
func NewRegistry(projects []*Project) *Registry {
	return &Registry{projects: projects}
}

// Projects returns the configured projects in registration order.
func (r *Registry) Projects() []*Project {
	return r.projects
}

// Get returns the project with the given name, or nil.
func (r *Registry) Get(name string) *Project {
	for _, p := range r.projects {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FindForFile returns the first project (in registration order) whose root
// contains the given file path, or nil if none does. Overlapping roots are
// resolved by order, not by longest prefix.
func (r *Registry) FindForFile(path string) *Project {
	for _, p := range r.projects {
		if p.Contains(path) {
			return p
		}
	}
	return nil
}

// FindForBuffer resolves the project for an editor buffer's file path.
// Buffers with no associated path resolve to no project.
func (r *Registry) FindForBuffer(path string) *Project {
	if path == "" {
		return nil
	}
	return r.FindForFile(path)
}
