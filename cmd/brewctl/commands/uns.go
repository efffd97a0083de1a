package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/config"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/uns"
)

var unsRetain bool

var unsCmd = &cobra.Command{
	Use:   "uns",
	Short: "Publish into the MQTT Unified Namespace",
}

var unsPublishCmd = &cobra.Command{
	Use:   "publish TOPIC PAYLOAD",
	Short: "Publish an arbitrary payload under the UNS root",
	Long: `Publish an arbitrary payload under the UNS root.

The topic is joined under the configured {site}/{area}/{line} prefix; the
payload is published verbatim (JSON payloads pass through unchanged).

Examples:
  # One-off value
  brewctl uns publish utilities/glycol/supply_temp '{"value": 1.8, "unit": "C"}'

  # Retained state
  brewctl uns publish cellar/fv3/setpoint '{"value": 18.0}' --retain`,
	Args: cobra.ExactArgs(2),
	RunE: runUNSPublish,
}

var unsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Publish a board snapshot to the UNS",
	Long: `Publish a board snapshot to the UNS.

Reads the whole board and publishes the retained summary document on the
coordination/board topic, the same document the coordinator maintains.`,
	RunE: runUNSStatus,
}

func init() {
	unsPublishCmd.Flags().BoolVar(&unsRetain, "retain", false, "Publish as a retained message")
	unsCmd.AddCommand(unsPublishCmd, unsStatusCmd)
	rootCmd.AddCommand(unsCmd)
}

// unsConnect builds a short-lived publisher for one CLI invocation.
func unsConnect(cfg *config.StackConfig) (*uns.Publisher, error) {
	if cfg.MQTT == nil {
		return nil, printer.Error(
			"mqtt integration not configured",
			"stack.yml has no 'mqtt:' section.",
			[]string{"Add broker_url and site under 'mqtt:' in stack.yml."},
		)
	}

	pub, err := uns.Connect(uns.Options{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientIDPrefix + "-brewctl",
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		QoS:       *cfg.MQTT.QoS,
		Root: uns.Root{
			Site: cfg.MQTT.Site,
			Area: cfg.MQTT.Area,
			Line: cfg.MQTT.Line,
		},
	})
	if err != nil {
		return nil, printer.Error(
			"failed to connect to MQTT broker",
			err.Error(),
			[]string{"Check the broker is running:\n  brewctl stack status"},
		)
	}
	return pub, nil
}

func runUNSPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	// Reject malformed JSON early; raw strings are allowed through.
	payload := []byte(args[1])
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		if !json.Valid(payload) {
			return printer.Error(
				"payload is not valid JSON",
				"The payload starts like a JSON document but does not parse.",
				nil,
			)
		}
	}

	pub, err := unsConnect(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	root := uns.Root{Site: cfg.MQTT.Site, Area: cfg.MQTT.Area, Line: cfg.MQTT.Line}
	topic := root.Join(strings.Split(args[0], "/")...)

	if err := pub.PublishRaw(topic, payload, unsRetain); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	printer.Success("Published to %s\n", topic)
	return nil
}

func runUNSStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	pub, err := unsConnect(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	if err := pub.BoardSnapshot(cfg.Project, tasks); err != nil {
		return fmt.Errorf("failed to publish board snapshot: %w", err)
	}

	printer.Success("Published snapshot of %d tasks\n", len(tasks))
	return nil
}
