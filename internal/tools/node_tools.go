// Package tools exposes the node lifecycle and debug control surface as
// MCP tools.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NodeUpInput defines input for the node_up tool.
type NodeUpInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name from the registry"`
	File    string `json:"file,omitempty" jsonschema:"A file path; the owning project is resolved from it"`
}

// NodeUpOutput defines output for node_up.
type NodeUpOutput struct {
	Project  string `json:"project"`
	Node     string `json:"node"`
	Started  bool   `json:"started"`
	Console  string `json:"console,omitempty"`
	PID      int    `json:"pid,omitempty"`
	External bool   `json:"external,omitempty"`
}

// ProjectsOutput defines output for the projects tool.
type ProjectsOutput struct {
	Count    int            `json:"count"`
	Projects []ProjectEntry `json:"projects"`
}

// ProjectEntry is one registered project.
type ProjectEntry struct {
	Name     string `json:"name"`
	Root     string `json:"root"`
	Node     string `json:"node"`
	Started  bool   `json:"started"`
	CodeDirs int    `json:"code_dirs"`
}

// RegisterNodeTools adds node lifecycle MCP tools to the server.
func RegisterNodeTools(server *mcp.Server, reg *project.Registry, mgr *node.Manager) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "node_up",
		Description: `Start the node for a project, or reuse it if already running.
Resolves the project by name, or from a file path it contains.
Examples:
  node_up {project: "acme"}
  node_up {file: "/src/acme/src/acme_srv.erl"}`,
	}, makeNodeUpHandler(reg, mgr))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "projects",
		Description: "List registered projects in registration order, with node state.",
	}, makeProjectsHandler(reg, mgr))
}

func makeNodeUpHandler(reg *project.Registry, mgr *node.Manager) func(context.Context, *mcp.CallToolRequest, NodeUpInput) (*mcp.CallToolResult, NodeUpOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input NodeUpInput) (*mcp.CallToolResult, NodeUpOutput, error) {
		p, result := resolveProject(reg, input.Project, input.File)
		if result != nil {
			return result, NodeUpOutput{}, nil
		}

		identity := node.Identity(p)
		wasStarted := mgr.IsStarted(identity)

		console, err := mgr.EnsureStarted(p)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to start node %s: %v", identity, err)), NodeUpOutput{}, nil
		}

		out := NodeUpOutput{
			Project: p.Name,
			Node:    identity,
			Started: !wasStarted,
		}
		if console != nil {
			out.Console = console.Name
			out.PID = console.PID()
		} else {
			out.External = true
		}
		return nil, out, nil
	}
}

func makeProjectsHandler(reg *project.Registry, mgr *node.Manager) func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ProjectsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ProjectsOutput, error) {
		projects := reg.Projects()
		entries := make([]ProjectEntry, len(projects))
		for i, p := range projects {
			entries[i] = ProjectEntry{
				Name:     p.Name,
				Root:     p.Root,
				Node:     node.Identity(p),
				Started:  mgr.IsStarted(node.Identity(p)),
				CodeDirs: len(p.CodePaths()),
			}
		}
		return nil, ProjectsOutput{Count: len(projects), Projects: entries}, nil
	}
}

// resolveProject finds the project named by input, or owning the given
// file. Exactly one of name and file should be set; name wins when both
// are.
func resolveProject(reg *project.Registry, name, file string) (*project.Project, *mcp.CallToolResult) {
	if name != "" {
		p := reg.Get(name)
		if p == nil {
			known := make([]string, 0, len(reg.Projects()))
			for _, q := range reg.Projects() {
				known = append(known, q.Name)
			}
			return nil, errorResult(fmt.Sprintf("unknown project %q. Registered: %s", name, strings.Join(known, ", ")))
		}
		return p, nil
	}
	if file != "" {
		p := reg.FindForFile(file)
		if p == nil {
			return nil, errorResult(fmt.Sprintf("no registered project contains %s", file))
		}
		return p, nil
	}
	return nil, errorResult("project or file required")
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
