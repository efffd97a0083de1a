package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/config"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/coordinator"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/discord"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/sheets"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/uns"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

func main() {
	// 1. Resolve the config path: flag beats environment beats default.
	configPath := flag.String("config", "", "Path to stack.yml (defaults to $IOTSTACK_CONFIG or ./stack.yml)")
	healthAddr := flag.String("health-addr", ":8080", "Health endpoint bind address")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("IOTSTACK_CONFIG")
	}
	if path == "" {
		path = "stack.yml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", path, err)
		os.Exit(1)
	}

	// 2. Redis URL: the REDIS_URL environment variable overrides stack.yml so
	// the same config file works inside and outside the compose network.
	redisURL := cfg.Redis.URL
	if env := os.Getenv("REDIS_URL"); env != "" {
		redisURL = env
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid Redis URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create the board client and verify connectivity.
	client, err := taskboard.NewClient(redisOpts, cfg.Project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create board client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Coordinator starting for project '%s' with %d instances\n", cfg.Project, len(cfg.Instances))

	opts := coordinator.Options{
		Client:     client,
		HealthAddr: *healthAddr,
	}
	for name := range cfg.Instances {
		opts.Instances = append(opts.Instances, name)
	}

	// 4. Wire each integration that stack.yml enables. A failed integration
	// is a warning, not a fatal error; the board keeps running without it.
	if cfg.Discord != nil {
		notifier, err := discord.NewNotifier(cfg.Discord.WebhookURL, cfg.Discord.Username, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Discord disabled: %v\n", err)
		} else {
			opts.Notifier = notifier
			fmt.Println("Discord notifier initialized")
		}
	}

	if cfg.Sheets != nil {
		mirror, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Tab)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Sheets mirror disabled: %v\n", err)
		} else {
			opts.Mirror = mirror
			fmt.Println("Sheets mirror initialized")
		}
	}

	var pub *uns.Publisher
	if cfg.MQTT != nil {
		pub, err = uns.Connect(uns.Options{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientIDPrefix + "-coordinator",
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
			fmt.Fprintf(os.Stderr, "Warning: UNS publishing disabled: %v\n", err)
			pub = nil
		} else {
			opts.Publisher = pub
			fmt.Println("UNS publisher initialized")
		}
	}

	// 5. Create the engine.
	engine, err := coordinator.NewEngine(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create engine: %v\n", err)
		os.Exit(1)
	}

	// 6. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 7. Run until a signal or an engine error.
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(runCtx)
	}()

	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Coordinator error: %v\n", runErr)
			os.Exit(1)
		}
	}

	if pub != nil {
		pub.Close()
	}

	fmt.Println("Coordinator stopped")
}
