package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/beamline-dev/beamline/internal/node"
	"github.com/beamline-dev/beamline/internal/project"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List registered projects",
	Long: `List the registered projects in registration order. When project
roots overlap, file paths resolve to the first registered match.`,
	Run: runProjects,
}

func runProjects(cmd *cobra.Command, args []string) {
	s, err := newStack(cmd)
	if err != nil {
		log.Fatalf("Failed to load project registry: %v", err)
	}
	defer s.Close()

	projects := s.registry.Projects()
	if len(projects) == 0 {
		fmt.Println("No projects registered. Add them to", projectConfigHint(cmd))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tNODE\tSTATE\tROOT")
	for _, p := range projects {
		identity := node.Identity(p)
		state := "down"
		if s.manager.IsStarted(identity) {
			state = "up"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, identity, state, p.Root)
	}
	w.Flush()
}

func projectConfigHint(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := project.DefaultConfigPath(); path != "" {
		return path
	}
	return "projects.kdl in the user config dir"
}
