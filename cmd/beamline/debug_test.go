package main

import (
	"testing"

	"github.com/beamline-dev/beamline/internal/project"
)

func TestParseMFA(t *testing.T) {
	tests := []struct {
		in       string
		module   string
		function string
		arity    int
		wantErr  bool
	}{
		{"acme_srv:handle_call/3", "acme_srv", "handle_call", 3, false},
		{"m:f/0", "m", "f", 0, false},
		{"no_colon/1", "", "", 0, true},
		{"m:no_arity", "", "", 0, true},
		{"m:f/-1", "", "", 0, true},
		{"m:f/x", "", "", 0, true},
	}

	for _, tt := range tests {
		mod, fn, arity, err := parseMFA(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMFA(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMFA(%q): %v", tt.in, err)
			continue
		}
		if mod != tt.module || fn != tt.function || arity != tt.arity {
			t.Errorf("parseMFA(%q) = %s:%s/%d", tt.in, mod, fn, arity)
		}
	}
}

func TestResolveTarget(t *testing.T) {
	acme, err := project.New(project.Options{Name: "acme", Root: "/src/acme"})
	if err != nil {
		t.Fatal(err)
	}
	reg := project.NewRegistry([]*project.Project{acme})

	if p := resolveTarget(reg, "acme"); p != acme {
		t.Error("expected name lookup to win")
	}
	if p := resolveTarget(reg, "/src/acme/src/acme_srv.erl"); p != acme {
		t.Error("expected file lookup fallback")
	}
	if p := resolveTarget(reg, "/elsewhere/f.erl"); p != nil {
		t.Error("expected nil for an unmatched argument")
	}
}
