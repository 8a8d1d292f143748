package cli

import (
	"flag"
	"fmt"

	"pd-docgen/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	conn := bindConnectFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := conn.load(config.Overrides{})
	if err != nil {
		return err
	}
	shown := settings.Redacted()
	if *jsonOut {
		return printJSON(shown)
	}

	fmt.Printf("config: %s\n", defaultIfEmpty(shown.ConfigFile, "(none, using env and defaults)"))
	fmt.Println(kv("base_url", shown.BaseURL))
	fmt.Println(kv("api_key", defaultIfEmpty(shown.APIKey, "(not set)")))
	fmt.Println(kv("org_id", defaultIfEmpty(shown.OrgID, "(not set)")))
	fmt.Println(kv("project_limit", fmt.Sprint(shown.ProjectLimit)))
	fmt.Println(kv("http_timeout", shown.HTTPTimeout.String()))
	fmt.Println(kv("max_body_bytes", formatBytesIEC(shown.MaxBodyBytes)))
	fmt.Println(kv("export_dir", shown.ExportDir))
	fmt.Println(kv("export_interval", shown.ExportInterval.String()))
	fmt.Println(kv("mode", shown.Mode))
	fmt.Println(kv("log_level", shown.LogLevel))
	fmt.Println(kv("log_format", shown.LogFormat))
	return nil
}

func printSettingsUsage() {
	fmt.Println("Settings Commands:")
	fmt.Println("  pd-docgen settings show [--config <path>] [--json]")
	fmt.Println()
	fmt.Println("Settings come from flags, then PDDOC_* environment variables,")
	fmt.Println("then pd-docgen.yaml, then built-in defaults.")
}
