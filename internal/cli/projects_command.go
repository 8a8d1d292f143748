package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"pd-docgen/internal/config"
)

type projectRow struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkflowCount int       `json:"workflow_count"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

func runProjects(args []string) error {
	fs := flag.NewFlagSet("projects", flag.ContinueOnError)
	conn := bindConnectFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, _, err := connect(context.Background(), conn, config.Overrides{})
	if err != nil {
		return err
	}
	projects := sess.Catalog().Projects()

	if *jsonOut {
		rows := make([]projectRow, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, projectRow{ID: p.ID, Name: p.Name, WorkflowCount: p.WorkflowCount, CreatedAt: p.CreatedAt})
		}
		return printJSON(map[string]any{
			"count":    len(rows),
			"projects": rows,
		})
	}

	fmt.Printf("Found %d projects\n", len(projects))
	for i, p := range projects {
		fmt.Printf("%3d. %-28s  %-14s  %-12s  %s\n",
			i+1, truncateRunes(p.Name, 28), formatWorkflowCount(p.WorkflowCount), formatCreated(p.CreatedAt), p.ID)
	}
	return nil
}
