package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/config"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/persona"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Print the built-in Claude instance briefings",
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in personas",
	RunE:  runPersonaList,
}

var personaShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print one persona's full briefing",
	Long: `Print one persona's full briefing.

The briefing is rendered with the current project name, ready to paste
into a new Claude session.

Examples:
  brewctl persona show mac-claude`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonaShow,
}

func init() {
	personaCmd.AddCommand(personaListCmd, personaShowCmd)
	rootCmd.AddCommand(personaCmd)
}

func runPersonaList(cmd *cobra.Command, args []string) error {
	printer.Printf("%-16s %s\n", "NAME", "ROLE")
	for _, p := range persona.Builtin() {
		printer.Printf("%-16s %s\n", p.Name, p.Role)
	}
	return nil
}

func runPersonaShow(cmd *cobra.Command, args []string) error {
	p, err := persona.Lookup(args[0])
	if err != nil {
		names := make([]string, 0)
		for _, bp := range persona.Builtin() {
			names = append(names, "  "+bp.Name)
		}
		return printer.Error(
			"unknown persona",
			err.Error(),
			[]string{"Available personas:\n" + strings.Join(names, "\n")},
		)
	}

	// Project context comes from stack.yml when present; the briefing still
	// renders without one.
	project := "brewery"
	if cfg, err := config.Load(configPath); err == nil {
		project = cfg.Project
	}

	printer.Printf("%s\n", p.Render(project))
	return nil
}
