package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "projects":
		return runProjects(args[1:])
	case "generate":
		return runGenerate(args[1:])
	case "select":
		return runSelect(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("pd-docgen: generate Markdown documentation for Pipedream projects")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  export PDDOC_API_KEY=<key>")
	fmt.Println("  pd-docgen projects")
	fmt.Println("  pd-docgen generate --all")
	fmt.Println("  pd-docgen select")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  projects  list projects in your workspace")
	fmt.Println("  generate  document selected projects and download the results")
	fmt.Println("  select    interactive picker: select, generate, review, download")
	fmt.Println("  settings  show effective settings")
	fmt.Println("  doctor    check API key, API reachability and export directory")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Enhanced mode needs --description; raw mode returns the stored docs as-is")
	fmt.Println("  - Files are written to ./docs as <project_name>_documentation.md")
}
