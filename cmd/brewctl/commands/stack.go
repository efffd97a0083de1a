package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/stack"
)

var stackStatusOutput string

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Inspect the docker services backing the project",
}

var stackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the stack's docker containers",
	Long: `Show the state of the stack's docker containers.

Containers are matched by iotstack.* labels first, then by well-known
images (mosquitto, emqx, n8n, node-red, grafana, influxdb, ignition).

Examples:
  # Human-readable table
  brewctl stack status

  # JSON for scripting
  brewctl stack status --output=json`,
	RunE: runStackStatus,
}

func init() {
	stackStatusCmd.Flags().StringVarP(&stackStatusOutput, "output", "o", "default", "Output format (default or json)")
	stackCmd.AddCommand(stackStatusCmd)
	rootCmd.AddCommand(stackCmd)
}

func runStackStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	cli, err := stack.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	services, err := stack.Discover(ctx, cli, cfg.Project)
	if err != nil {
		return printer.Error(
			"failed to list containers",
			err.Error(),
			[]string{"Check the docker daemon is reachable:\n  docker ps"},
		)
	}

	if stackStatusOutput == "json" {
		return printJSON(services)
	}

	if len(services) == 0 {
		printer.Printf("No stack services found for project '%s'\n", cfg.Project)
		return nil
	}

	printer.Printf("Services for project '%s':\n\n", cfg.Project)
	printer.Printf("%-14s %-24s %-30s %-9s %s\n", "SERVICE", "CONTAINER", "IMAGE", "STATE", "UPTIME")
	for _, s := range services {
		printer.Printf("%-14s %-24s %-30s %-9s %s\n",
			s.Name, s.Container, s.Image, s.State, s.Uptime())
	}
	printer.Printf("\n%d services found\n", len(services))
	return nil
}
