package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"pd-docgen/internal/batch"
	"pd-docgen/internal/config"
	"pd-docgen/internal/export"
	"pd-docgen/internal/model"
	"pd-docgen/internal/session"
)

type generateOutcome struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	File        string `json:"file,omitempty"`
}

type generateResult struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	ExportDir  string            `json:"export_dir,omitempty"`
	Outcomes   []generateOutcome `json:"outcomes"`
	ExportNote string            `json:"export_note,omitempty"`
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	conn := bindConnectFlags(fs)
	var projectIDs stringList
	fs.Var(&projectIDs, "project", "project id to document (repeatable or comma-separated)")
	all := fs.Bool("all", false, "document every project in the workspace")
	mode := fs.String("mode", "", "generation mode: raw|enhanced (default from config)")
	description := fs.String("description", "", "project description for enhanced mode")
	exportDir := fs.String("export-dir", "", "directory for exported Markdown files")
	noExport := fs.Bool("no-export", false, "skip writing Markdown files")
	jsonOut := fs.Bool("json", false, "print JSON output")
	yes := fs.Bool("yes", false, "skip the confirmation prompt for --all")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids := splitCSV(projectIDs)
	if *all && len(ids) > 0 {
		return errors.New("use either --project or --all, not both")
	}
	if !*all && len(ids) == 0 {
		return fmt.Errorf("%w: select at least one project (--project <id> or --all)", model.ErrValidation)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, settings, err := connect(ctx, conn, config.Overrides{Mode: *mode, ExportDir: *exportDir})
	if err != nil {
		return err
	}
	if !*jsonOut {
		fmt.Printf("Loaded %d projects\n", sess.Catalog().Len())
	}

	if *all {
		if !*yes && !*jsonOut && stdinIsTTY() {
			ok, err := promptConfirm(fmt.Sprintf("Document all %d projects? [y/N]: ", sess.Catalog().Len()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}
		sess.Selection().SelectAll()
	} else if err := sess.Select(ids); err != nil {
		return err
	}
	if err := sess.SetMode(settings.GenerationMode(), *description); err != nil {
		return err
	}

	var onStart func(batch.ItemStart)
	var onProgress func(batch.Progress)
	var reporter *batch.LineReporter
	if !*jsonOut {
		reporter = batch.NewLineReporter(os.Stdout, stdoutIsTTY())
		onStart = reporter.Start
		onProgress = reporter.Progress
		fmt.Printf("Generating documentation: %s, %s\n", formatSelectedCount(sess.Selection().Count()), settings.GenerationMode().Label())
	}

	run, runErr := sess.RunBatch(ctx, onStart, onProgress)
	if errors.Is(runErr, model.ErrValidation) {
		return runErr
	}
	if reporter != nil {
		reporter.Finish(run)
		printFailures(run)
	}

	files := map[string]string{}
	note := ""
	if !*noExport && runErr == nil {
		files, note, err = exportAll(ctx, sess, settings, !*jsonOut)
		if err != nil {
			return err
		}
	}

	if *jsonOut {
		if err := printJSON(buildGenerateResult(run, settings.ExportDir, files, note, *noExport)); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("generation interrupted: %w", runErr)
	}
	if run.Total > 0 && run.Succeeded() == 0 {
		return fmt.Errorf("%w: all %d projects failed", model.ErrGeneration, run.Total)
	}
	return nil
}

// exportAll writes every success and returns file paths keyed by project id.
func exportAll(ctx context.Context, sess *session.Session, settings config.Settings, verbose bool) (map[string]string, string, error) {
	files := map[string]string{}
	pending, err := sess.ExportAll(ctx)
	if errors.Is(err, export.ErrNothingToExport) {
		if verbose {
			fmt.Println("No successful documentation to download.")
		}
		return files, err.Error(), nil
	}
	if err != nil {
		return files, "", err
	}
	if verbose {
		fmt.Printf("Downloading %d file(s) to %s...\n", pending.Len(), settings.ExportDir)
	}
	exported, waitErr := pending.Wait()
	var total int64
	for _, e := range exported {
		if e.Err != nil {
			continue
		}
		files[e.Job.ProjectID] = e.Location
		total += int64(e.Bytes)
		if verbose {
			fmt.Printf("  saved %s\n", e.Location)
		}
	}
	if waitErr != nil {
		return files, "", fmt.Errorf("export: %w", waitErr)
	}
	if verbose {
		fmt.Printf("Downloaded %d file(s), %s\n", len(files), formatBytesIEC(total))
	}
	return files, "", nil
}

func printFailures(run model.BatchRun) {
	if run.Failed() == 0 {
		return
	}
	fmt.Println("Failed:")
	for _, o := range run.Outcomes {
		if o.Succeeded() {
			continue
		}
		fmt.Printf("  - %s: %s\n", defaultIfEmpty(o.ProjectName, o.ProjectID), strings.TrimSpace(o.Error))
	}
}

func buildGenerateResult(run model.BatchRun, dir string, files map[string]string, note string, skipped bool) generateResult {
	res := generateResult{
		RunID:      run.RunID,
		Mode:       string(run.Mode),
		Total:      run.Total,
		Succeeded:  run.Succeeded(),
		Failed:     run.Failed(),
		Outcomes:   make([]generateOutcome, 0, len(run.Outcomes)),
		ExportNote: note,
	}
	if !skipped {
		res.ExportDir = dir
	}
	for _, o := range run.Outcomes {
		res.Outcomes = append(res.Outcomes, generateOutcome{
			ProjectID:   o.ProjectID,
			ProjectName: o.ProjectName,
			Status:      string(o.Status),
			Error:       o.Error,
			Bytes:       len(o.Content),
			File:        files[o.ProjectID],
		})
	}
	return res
}
