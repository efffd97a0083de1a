package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/config"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/n8n"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
)

var workflowPayload string

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "List and trigger n8n workflows",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows on the n8n instance",
	RunE:  runWorkflowList,
}

var workflowTriggerCmd = &cobra.Command{
	Use:   "trigger WEBHOOK_PATH",
	Short: "Trigger a workflow through its webhook",
	Long: `Trigger a workflow through its webhook.

Examples:
  # Fire a workflow with no payload
  brewctl workflow trigger brew-day-start

  # Pass data to the workflow
  brewctl workflow trigger batch-log --payload '{"batch": "IPA-042"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowTrigger,
}

func init() {
	workflowTriggerCmd.Flags().StringVarP(&workflowPayload, "payload", "p", "", "JSON payload to send to the webhook")
	workflowCmd.AddCommand(workflowListCmd, workflowTriggerCmd)
	rootCmd.AddCommand(workflowCmd)
}

func workflowClient(cfg *config.StackConfig) (*n8n.Client, error) {
	if cfg.N8N == nil {
		return nil, printer.Error(
			"n8n integration not configured",
			"stack.yml has no 'n8n:' section.",
			[]string{"Add base_url (and api_key for listing) under 'n8n:' in stack.yml."},
		)
	}
	return n8n.NewClient(cfg.N8N.BaseURL, cfg.N8N.APIKey, nil)
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := workflowClient(cfg)
	if err != nil {
		return err
	}

	workflows, err := client.ListWorkflows(context.Background())
	if err != nil {
		return printer.Error(
			"failed to list workflows",
			err.Error(),
			[]string{"Check n8n is running:\n  brewctl stack status"},
		)
	}

	if len(workflows) == 0 {
		printer.Printf("No workflows found\n")
		return nil
	}

	printer.Printf("%-20s %-8s %s\n", "ID", "ACTIVE", "NAME")
	for _, w := range workflows {
		active := "no"
		if w.Active {
			active = "yes"
		}
		printer.Printf("%-20s %-8s %s\n", w.ID, active, w.Name)
	}
	printer.Printf("\n%d workflows found\n", len(workflows))
	return nil
}

func runWorkflowTrigger(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := workflowClient(cfg)
	if err != nil {
		return err
	}

	var payload any
	if workflowPayload != "" {
		if err := json.Unmarshal([]byte(workflowPayload), &payload); err != nil {
			return printer.Error(
				"payload is not valid JSON",
				fmt.Sprintf("Error: %v", err),
				nil,
			)
		}
	}

	body, err := client.TriggerWebhook(context.Background(), args[0], payload)
	if err != nil {
		return printer.Error(
			"failed to trigger workflow",
			err.Error(),
			[]string{"Check the webhook path matches the workflow's webhook node."},
		)
	}

	printer.Success("Workflow triggered\n")
	if len(body) > 0 {
		printer.Printf("%s\n", body)
	}
	return nil
}
