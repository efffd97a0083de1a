package commands

import (
	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/scaffold"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter stack.yml in the current directory",
	Long: `Create a starter stack.yml in the current directory.

The generated file declares a Redis board URL, two example Claude
instances, and commented-out sections for each optional integration
(Google Sheets, Discord, MQTT, n8n).

Examples:
  # Create stack.yml
  brewctl init

  # Overwrite an existing stack.yml
  brewctl init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing stack.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(initForce); err != nil {
		return err
	}

	scaffold.PrintSuccess()
	return nil
}
