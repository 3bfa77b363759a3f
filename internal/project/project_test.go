package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	p, err := New(Options{Name: "acme", Root: "/src/acme"})
	require.NoError(t, err)

	assert.Equal(t, "acme", p.Name)
	assert.Equal(t, "/src/acme", p.Root)
	assert.Equal(t, []string{"lib"}, p.LibDirs, "lib-dirs defaults to [lib]")
	assert.Equal(t, "acme", p.NodeName, "node-sname falls back to name")
	assert.Empty(t, p.StartCommand)
}

func TestNewKeepsExplicitFields(t *testing.T) {
	p, err := New(Options{
		Name:         "acme",
		Root:         "/src/acme",
		LibDirs:      []string{"lib", "deps"},
		NodeName:     "acme_dev",
		StartCommand: "bin/start.sh -i",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"lib", "deps"}, p.LibDirs)
	assert.Equal(t, "acme_dev", p.NodeName)
	assert.Equal(t, "bin/start.sh -i", p.StartCommand)
}

func TestNewRequiredFields(t *testing.T) {
	_, err := New(Options{Root: "/src/acme"})
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = New(Options{Name: "acme"})
	assert.ErrorIs(t, err, ErrMissingRoot)
}

func mustProject(t *testing.T, opts Options) *Project {
	t.Helper()
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestRegistryFindForFile(t *testing.T) {
	first := mustProject(t, Options{Name: "first", Root: "/src/app"})
	nested := mustProject(t, Options{Name: "nested", Root: "/src/app/sub"})
	other := mustProject(t, Options{Name: "other", Root: "/src/other"})
	reg := NewRegistry([]*Project{first, nested, other})

	// First match wins, even when a later project has a longer prefix.
	assert.Same(t, first, reg.FindForFile("/src/app/sub/deep/file.erl"))
	assert.Same(t, other, reg.FindForFile("/src/other/x.erl"))
	assert.Nil(t, reg.FindForFile("/elsewhere/x.erl"))
}

func TestRegistryFindForBuffer(t *testing.T) {
	p := mustProject(t, Options{Name: "app", Root: "/src/app"})
	reg := NewRegistry([]*Project{p})

	assert.Same(t, p, reg.FindForBuffer("/src/app/src/mod.erl"))
	assert.Nil(t, reg.FindForBuffer(""), "buffer without a path resolves to no project")
}

func TestRegistryGet(t *testing.T) {
	p := mustProject(t, Options{Name: "app", Root: "/src/app"})
	reg := NewRegistry([]*Project{p})

	assert.Same(t, p, reg.Get("app"))
	assert.Nil(t, reg.Get("missing"))
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
project {
    name "acme"
    root "/src/acme"
    lib-dirs "lib" "deps"
    node-sname "acme_dev"
    start-command "bin/start.sh -i"
}

project {
    name "widget"
    root "/src/widget"
}
`)

	reg, err := ParseConfig(data)
	require.NoError(t, err)
	require.Len(t, reg.Projects(), 2)

	acme := reg.Projects()[0]
	assert.Equal(t, "acme", acme.Name)
	assert.Equal(t, []string{"lib", "deps"}, acme.LibDirs)
	assert.Equal(t, "acme_dev", acme.NodeName)
	assert.Equal(t, "bin/start.sh -i", acme.StartCommand)

	widget := reg.Projects()[1]
	assert.Equal(t, "widget", widget.Name)
	assert.Equal(t, []string{"lib"}, widget.LibDirs)
	assert.Equal(t, "widget", widget.NodeName)
}

func TestParseConfigMissingRoot(t *testing.T) {
	_, err := ParseConfig([]byte(`project { name "broken" }`))
	assert.ErrorIs(t, err, ErrMissingRoot)
}
