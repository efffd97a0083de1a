// Package stack discovers and reports on the Docker services that make up the
// brewery IoT stack: the MQTT broker, n8n, Node-RED, Grafana and the
// historian. Services are recognised by the iotstack.* labels, falling back to
// well-known image names for containers started outside our compose files.
package stack

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// Docker labels the stack's compose files attach to every service container.
const (
	LabelProject = "iotstack.project"
	LabelService = "iotstack.service"
)

// NewClient creates a Docker client and validates daemon is accessible.
// Returns an error if the Docker daemon is not running or not accessible.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Validate daemon is accessible
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return cli, nil
}
