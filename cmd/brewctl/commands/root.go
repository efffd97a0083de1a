// Package commands implements the brewctl CLI.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/config"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

var (
	version string
	commit  string
	date    string

	// configPath is shared by every subcommand that needs stack.yml.
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "brewctl",
	Short: "brewctl - brewery IoT stack coordination",
	Long: `brewctl coordinates multiple Claude instances working on one brewery
IoT stack. The shared task board lives in Redis; brewctl claims tasks,
reserves shared resources, mirrors state to Google Sheets, announces
changes on Discord, publishes into the MQTT Unified Namespace, and
discovers industrial devices on the plant network.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "stack.yml", "Path to the stack configuration file")
}

// loadStack loads and validates stack.yml, with a guided error when absent.
func loadStack() (*config.StackConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, printer.Error(
				"no stack configuration found",
				fmt.Sprintf("Could not read %s.", configPath),
				[]string{
					"Create one:\n  brewctl init",
					"Or point at an existing file:\n  brewctl --config path/to/stack.yml ...",
				},
			)
		}
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// boardClient connects to the task board named in the configuration.
func boardClient(cfg *config.StackConfig) (*taskboard.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := taskboard.NewClient(redisOpts, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}
	return client, nil
}

// instanceName resolves which instance identity this invocation acts as:
// the --as flag when set, otherwise the IOTSTACK_INSTANCE environment
// variable. The name must be declared in stack.yml.
func instanceName(flagValue string, cfg *config.StackConfig) (string, error) {
	name := flagValue
	if name == "" {
		name = os.Getenv("IOTSTACK_INSTANCE")
	}
	if name == "" {
		return "", printer.Error(
			"no instance identity",
			"This command acts on behalf of a Claude instance, but none was given.",
			[]string{
				"Pass it explicitly:\n  brewctl ... --as mac-claude",
				"Or set the environment variable:\n  export IOTSTACK_INSTANCE=mac-claude",
			},
		)
	}

	if _, ok := cfg.Instances[name]; !ok {
		return "", printer.Error(
			fmt.Sprintf("unknown instance '%s'", name),
			"The instance is not declared in stack.yml.",
			[]string{"Add it under 'instances:' in stack.yml, or use a declared name."},
		)
	}
	return name, nil
}
