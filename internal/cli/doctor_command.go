package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"pd-docgen/internal/config"
	"pd-docgen/internal/doctor"
	"pd-docgen/internal/pdapi"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	conn := bindConnectFlags(fs)
	exportDir := fs.String("export-dir", "", "directory for exported Markdown files")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := conn.load(config.Overrides{ExportDir: *exportDir})
	if err != nil {
		return err
	}
	opts := doctor.Options{
		APIKey:    settings.APIKey,
		BaseURL:   settings.BaseURL,
		ExportDir: settings.ExportDir,
	}
	if strings.TrimSpace(settings.APIKey) != "" {
		client, err := apiDialer(settings)(pdapi.Credentials{APIKey: settings.APIKey, OrgID: settings.OrgID})
		if err != nil {
			return err
		}
		opts.Client = client
	}

	res := doctor.Run(context.Background(), opts)
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			state := "ok"
			if !c.OK {
				state = "FAIL"
			}
			fmt.Printf("%-4s  %-18s  %s\n", state, c.Name, c.Message)
		}
	}
	if !res.OK {
		return errors.New("doctor found problems")
	}
	return nil
}
