package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ServiceState summarises a service's container state.
type ServiceState string

const (
	StateRunning ServiceState = "running"
	StateStopped ServiceState = "stopped"
	StateOther   ServiceState = "other" // restarting, paused, dead
)

// Service describes one stack service as discovered from Docker.
type Service struct {
	Name      string       // Canonical service name (e.g. "mqtt-broker")
	Container string       // Container name as Docker reports it
	Image     string
	State     ServiceState
	Status    string // Docker's human status line ("Up 3 hours")
	Labeled   bool   // True when found via iotstack.* labels
}

// wellKnownImages maps image name substrings to canonical service names, for
// containers started by hand rather than from the stack's compose files.
var wellKnownImages = map[string]string{
	"eclipse-mosquitto":            "mqtt-broker",
	"emqx":                         "mqtt-broker",
	"n8nio/n8n":                    "n8n",
	"nodered/node-red":             "node-red",
	"grafana/grafana":              "grafana",
	"influxdb":                     "influxdb",
	"inductiveautomation/ignition": "ignition",
}

// Discover lists the stack's service containers. Containers carrying the
// iotstack.project label for this project are always included; unlabeled
// containers running a well-known stack image are included as a fallback so
// the status command still works against a hand-built stack.
func Discover(ctx context.Context, cli *client.Client, project string) ([]Service, error) {
	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var services []Service
	for _, c := range containers {
		svc, ok := classify(c, project)
		if !ok {
			continue
		}
		services = append(services, svc)
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})
	return services, nil
}

// DiscoverService finds the containers for one named service.
func DiscoverService(ctx context.Context, cli *client.Client, project, serviceName string) ([]Service, error) {
	filter := filters.NewArgs()
	filter.Add("label", fmt.Sprintf("%s=%s", LabelProject, project))
	filter.Add("label", fmt.Sprintf("%s=%s", LabelService, serviceName))

	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{All: true, Filters: filter})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var services []Service
	for _, c := range containers {
		if svc, ok := classify(c, project); ok {
			services = append(services, svc)
		}
	}
	return services, nil
}

// classify maps one Docker container onto a stack service, or reports that it
// is not part of the stack.
func classify(c types.Container, project string) (Service, bool) {
	svc := Service{
		Image:  c.Image,
		State:  mapState(c.State),
		Status: c.Status,
	}
	if len(c.Names) > 0 {
		svc.Container = strings.TrimPrefix(c.Names[0], "/")
	}

	if c.Labels[LabelProject] == project {
		name := c.Labels[LabelService]
		if name == "" {
			name = svc.Container
		}
		svc.Name = name
		svc.Labeled = true
		return svc, true
	}

	for substr, name := range wellKnownImages {
		if strings.Contains(c.Image, substr) {
			svc.Name = name
			return svc, true
		}
	}

	return Service{}, false
}

func mapState(state string) ServiceState {
	switch state {
	case "running":
		return StateRunning
	case "exited", "created":
		return StateStopped
	default:
		return StateOther
	}
}

// Uptime extracts the container uptime out of Docker's status line where
// possible; returns "-" when the container is not up.
func (s Service) Uptime() string {
	if s.State != StateRunning {
		return "-"
	}
	return strings.TrimPrefix(s.Status, "Up ")
}

// Healthy reports whether every expected service is running. Missing services
// are returned by name so callers can say what is absent, not just that
// something is.
func Healthy(services []Service, expected []string) (bool, []string) {
	running := make(map[string]bool)
	for _, svc := range services {
		if svc.State == StateRunning {
			running[svc.Name] = true
		}
	}

	var missing []string
	for _, name := range expected {
		if !running[name] {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}
