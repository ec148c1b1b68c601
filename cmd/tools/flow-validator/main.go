// cmd/tools/flow-validator/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"application-intake/internal/application"
	"application-intake/internal/flow"
	"application-intake/internal/models"
	"application-intake/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Validate command flags
	validateDir := validateCmd.String("dir", "configs/flows", "Directory of flow definition files")
	baseline := validateCmd.String("baseline", "founder", "Baseline role the registry falls back to")

	// Export command flags
	exportRole := exportCmd.String("role", "", "Role of the built-in flow to export (founder, innovator)")
	exportOut := exportCmd.String("out", "", "Output YAML file")

	// List command flags
	listDir := listCmd.String("dir", "configs/flows", "Directory of flow definition files")
	listRole := listCmd.String("role", "founder", "Applicant role")
	listTrack := listCmd.String("track", "", "Venture track (startup, researcher, innovator_residence)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateFlows(*validateDir, models.Role(*baseline)); err != nil {
			fmt.Printf("Flow validation failed: %v\n", err)
			os.Exit(1)
		}

	case "export":
		exportCmd.Parse(os.Args[2:])
		if *exportRole == "" || *exportOut == "" {
			fmt.Println("Error: role and out are required for export.")
			exportCmd.Usage()
			os.Exit(1)
		}
		if err := exportFlow(models.Role(*exportRole), *exportOut); err != nil {
			fmt.Printf("Error exporting flow: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %s flow to %s\n", *exportRole, *exportOut)

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listSteps(*listDir, models.Role(*listRole), *listTrack); err != nil {
			fmt.Printf("Error listing steps: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func validateFlows(dir string, baseline models.Role) error {
	reg, loaded, err := flow.LoadRegistry(baseline, dir)
	if err != nil {
		return err
	}

	for _, f := range reg.Flows() {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("flow %s: %w", f.ID, err)
		}
	}

	fmt.Printf("Flow validation passed. %d flow files loaded from %s, %d flows active.\n",
		len(loaded), dir, len(reg.Flows()))
	return nil
}

func exportFlow(role models.Role, out string) error {
	f, ok := flow.DefaultRegistry().Lookup(role)
	if !ok {
		return fmt.Errorf("no built-in flow for role %q", role)
	}

	doc, err := flow.ToDocument(f)
	if err != nil {
		return err
	}
	return registry.SaveDocument(doc, out)
}

func listSteps(dir string, role models.Role, track string) error {
	reg, _, err := flow.LoadRegistry(models.RoleFounder, dir)
	if err != nil {
		return err
	}

	state := application.New()
	if err := state.SelectRole(role); err != nil {
		return err
	}
	if track != "" {
		if err := state.UpdateVenture(application.Patch{"track": track}); err != nil {
			return err
		}
	}

	f := reg.ForRole(role)
	steps, errs := f.Active(state.View())
	for _, err := range errs {
		fmt.Printf("warning: %v\n", err)
	}

	fmt.Printf("Flow %s (%d steps)\n", f.ID, len(steps))
	section := ""
	for i, s := range steps {
		if s.SectionID != section {
			section = s.SectionID
			fmt.Printf("\n[%s]\n", section)
		}
		marker := " "
		if s.Conditional() {
			marker = "?"
		}
		fmt.Printf("%s %2d. %-28s %-8s %s\n", marker, i+1, s.ID, s.Type, strings.TrimSpace(s.Title))
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: flow-validator <command> [flags]

Commands:
  validate Load flow files over the built-in flows and validate them
  export   Write a built-in flow as a definition file
  list     Print the active steps for a role and track
  help     Show this help message

Examples:
  flow-validator validate -dir configs/flows
  flow-validator export -role founder -out configs/flows/founder.yaml
  flow-validator list -role founder -track researcher

Use 'flow-validator <command> -h' for more information about a command.
` + "\n")
}
