package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/discord"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
)

var notifyTitle string

var notifyCmd = &cobra.Command{
	Use:   "notify MESSAGE",
	Short: "Send a message through the configured Discord webhook",
	Long: `Send a message through the configured Discord webhook.

Examples:
  # A plain message
  brewctl notify "glycol chiller back online"

  # With an embed title
  brewctl notify "fermenter 3 holding at 18.2C" --title "Crash cool complete"`,
	Args: cobra.ExactArgs(1),
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTitle, "title", "", "Render the message as an embed with this title")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	if cfg.Discord == nil {
		return printer.Error(
			"discord integration not configured",
			"stack.yml has no 'discord:' section.",
			[]string{"Add webhook_url under 'discord:' in stack.yml."},
		)
	}

	notifier, err := discord.NewNotifier(cfg.Discord.WebhookURL, cfg.Discord.Username, nil)
	if err != nil {
		return err
	}

	msg := discord.Message{Content: args[0]}
	if notifyTitle != "" {
		msg = discord.Message{
			Embeds: []discord.Embed{{
				Title:       notifyTitle,
				Description: args[0],
			}},
		}
	}

	if err := notifier.Send(context.Background(), msg); err != nil {
		return printer.Error(
			"failed to send notification",
			err.Error(),
			[]string{"Check the webhook URL in stack.yml is still valid."},
		)
	}

	printer.Success("Notification sent\n")
	return nil
}
