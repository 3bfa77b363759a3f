package tools

import (
	"path/filepath"
	"testing"

	"github.com/beamline-dev/beamline/internal/project"
)

func testRegistry(t *testing.T) *project.Registry {
	t.Helper()
	acme, err := project.New(project.Options{Name: "acme", Root: "/src/acme"})
	if err != nil {
		t.Fatal(err)
	}
	other, err := project.New(project.Options{Name: "other", Root: "/src/other", NodeName: "other_dev"})
	if err != nil {
		t.Fatal(err)
	}
	return project.NewRegistry([]*project.Project{acme, other})
}

func TestResolveProjectByName(t *testing.T) {
	reg := testRegistry(t)

	p, result := resolveProject(reg, "other", "")
	if result != nil {
		t.Fatalf("unexpected error result: %v", result)
	}
	if p.Name != "other" {
		t.Errorf("resolved %q, want other", p.Name)
	}
}

func TestResolveProjectByFile(t *testing.T) {
	reg := testRegistry(t)

	p, result := resolveProject(reg, "", filepath.Join("/src/acme", "src", "acme_srv.erl"))
	if result != nil {
		t.Fatalf("unexpected error result: %v", result)
	}
	if p.Name != "acme" {
		t.Errorf("resolved %q, want acme", p.Name)
	}
}

func TestResolveProjectNameWinsOverFile(t *testing.T) {
	reg := testRegistry(t)

	p, result := resolveProject(reg, "other", "/src/acme/src/acme_srv.erl")
	if result != nil {
		t.Fatalf("unexpected error result: %v", result)
	}
	if p.Name != "other" {
		t.Errorf("resolved %q, want other", p.Name)
	}
}

func TestResolveProjectUnknown(t *testing.T) {
	reg := testRegistry(t)

	if _, result := resolveProject(reg, "ghost", ""); result == nil || !result.IsError {
		t.Error("expected an error result for an unknown project name")
	}
	if _, result := resolveProject(reg, "", "/elsewhere/f.erl"); result == nil || !result.IsError {
		t.Error("expected an error result for an unowned file")
	}
	if _, result := resolveProject(reg, "", ""); result == nil || !result.IsError {
		t.Error("expected an error result when nothing identifies the project")
	}
}
